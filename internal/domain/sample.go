package domain

// SampleDefinition is the demo assessment served when no definition store is configured.
func SampleDefinition() AssessmentDefinition {
	return AssessmentDefinition{
		ID:                "assessment-1",
		Title:             "Backend fundamentals",
		TimeLimitMinutes:  30,
		PassingPercentage: 60,
		Sections: []Section{
			{
				ID:    "mcq",
				Title: "Multiple choice",
				Questions: []Question{
					{
						ID:     "q1",
						Kind:   KindSingle,
						Prompt: "Which HTTP status means conflict?",
						Options: []Option{
							{ID: "a", Text: "404"},
							{ID: "b", Text: "409"},
							{ID: "c", Text: "500"},
						},
						Correct: []string{"b"},
						Points:  1,
					},
					{
						ID:     "q2",
						Kind:   KindMulti,
						Prompt: "Which are idempotent HTTP methods?",
						Options: []Option{
							{ID: "a", Text: "GET"},
							{ID: "b", Text: "POST"},
							{ID: "c", Text: "PUT"},
							{ID: "d", Text: "DELETE"},
						},
						Correct: []string{"a", "c", "d"},
						Points:  2,
					},
					{
						ID:     "q3",
						Kind:   KindText,
						Prompt: "Explain the difference between a mutex and a channel.",
						Points: 3,
					},
				},
			},
			{
				ID:    "coding",
				Title: "Coding",
				Questions: []Question{
					{
						ID:     "q4",
						Kind:   KindCode,
						Prompt: "Read two integers and print their sum.",
						Points: 4,
						Problem: &CodeProblem{
							ID:         "sum-two",
							Difficulty: DifficultyEasy,
							Languages:  []string{"go", "python"},
							TestCases: []TestCase{
								{ID: "t1", Input: "1 2", Expected: "3", Sample: true},
								{ID: "t2", Input: "10 -4", Expected: "6"},
							},
						},
					},
				},
			},
		},
		Grading: GradingConfig{
			Mode:           GradingPerProblem,
			TestcasePoints: TestcasePoints{Easy: 1, Medium: 2, Hard: 3},
		},
		Security: SecurityConfig{
			TabChangeDetection:   true,
			CopyPasteDetection:   true,
			AllowRunBeforeSubmit: true,
		},
	}
}
