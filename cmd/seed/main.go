package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ksingla1885/Mindora-sub003/internal/config"
	"github.com/ksingla1885/Mindora-sub003/internal/database"
	"github.com/ksingla1885/Mindora-sub003/internal/logger"
	"github.com/ksingla1885/Mindora-sub003/internal/model"
	"github.com/ksingla1885/Mindora-sub003/internal/repository"
	"github.com/ksingla1885/Mindora-sub003/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	testRepo := repository.NewTestRepository(pool)
	authService := service.NewAuthService(cfg)

	fmt.Println("=== Seeding demo test ===")

	test := demoTest()
	if err := testRepo.CreateTest(ctx, test); err != nil {
		log.Fatal().Err(err).Msg("Failed to create test")
	}
	fmt.Printf("Created test %s (%d questions, %d minutes)\n", test.ID, len(test.Questions), test.DurationMinutes)

	// Dev token for user 1 so the endpoints are exercisable immediately.
	token, err := authService.IssueToken(1)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to issue dev token")
	}
	fmt.Println("\nDev token (user 1):")
	fmt.Println(token)
	fmt.Printf("\nTry: curl -H 'Authorization: Bearer <token>' http://localhost:%s/api/v1/tests/%s/paper\n", cfg.ServerPort, test.ID)
}

func demoTest() *model.Test {
	return &model.Test{
		Title:           "General Knowledge Demo",
		DurationMinutes: 30,
		PassingScore:    70,
		Status:          model.TestStatusPublished,
		Questions: []model.Question{
			{
				QuestionText:  "Which planet is known as the Red Planet?",
				QuestionType:  model.QuestionTypeMCQ,
				Difficulty:    model.DifficultyEasy,
				Marks:         1,
				Options:       []string{"Venus", "Mars", "Jupiter", "Saturn"},
				CorrectAnswer: "Mars",
				Explanation:   "Iron oxide on its surface gives Mars its reddish color.",
				OrderNum:      1,
			},
			{
				QuestionText:  "The Great Wall of China is visible from the Moon with the naked eye.",
				QuestionType:  model.QuestionTypeTrueFalse,
				Difficulty:    model.DifficultyMedium,
				Marks:         1,
				CorrectAnswer: "false",
				Explanation:   "It is far too narrow to be seen from that distance.",
				OrderNum:      2,
			},
			{
				QuestionText:  "What is the chemical symbol for gold?",
				QuestionType:  model.QuestionTypeShortAnswer,
				Difficulty:    model.DifficultyEasy,
				Marks:         1,
				CorrectAnswer: "Au",
				OrderNum:      3,
			},
			{
				QuestionText: "Match each country to its capital.",
				QuestionType: model.QuestionTypeMatching,
				Difficulty:   model.DifficultyMedium,
				Marks:        2,
				MatchingPairs: []model.MatchingPair{
					{Left: "France", Right: "Paris"},
					{Left: "Japan", Right: "Tokyo"},
					{Left: "Egypt", Right: "Cairo"},
				},
				OrderNum: 4,
			},
			{
				QuestionText: "Order these events from earliest to latest.",
				QuestionType: model.QuestionTypeOrdering,
				Difficulty:   model.DifficultyHard,
				Marks:        2,
				OrderingItems: []model.OrderingItem{
					{ID: "moon", Text: "First Moon landing", CorrectPosition: 2},
					{ID: "www", Text: "Invention of the World Wide Web", CorrectPosition: 3},
					{ID: "flight", Text: "First powered flight", CorrectPosition: 1},
				},
				OrderNum: 5,
			},
			{
				QuestionText: "In a few sentences, explain why timezones exist.",
				QuestionType: model.QuestionTypeEssay,
				Difficulty:   model.DifficultyMedium,
				Marks:        3,
				OrderNum:     6,
			},
		},
	}
}
