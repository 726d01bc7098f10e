package app

import "testing"

func TestScoreAnswer(t *testing.T) {
	cases := []struct {
		name   string
		in     scoreInput
		expect scoreResult
	}{
		{
			name:   "wrong answer resets streak",
			in:     scoreInput{correctAnswer: 1, answerIndex: 2, streakBefore: 3},
			expect: scoreResult{},
		},
		{
			name:   "first correct without streak",
			in:     scoreInput{correctAnswer: 1, answerIndex: 1},
			expect: scoreResult{isCorrect: true, isFirstCorrect: true, points: 2, streakAfter: 1},
		},
		{
			name:   "correct but not first",
			in:     scoreInput{correctAnswer: 0, answerIndex: 0, firstCorrectTaken: true},
			expect: scoreResult{isCorrect: true, points: 1, streakAfter: 1},
		},
		{
			name:   "streak bonus starts at two",
			in:     scoreInput{correctAnswer: 3, answerIndex: 3, firstCorrectTaken: true, streakBefore: 1},
			expect: scoreResult{isCorrect: true, points: 2, streakAfter: 2},
		},
		{
			name:   "all bonuses",
			in:     scoreInput{correctAnswer: 2, answerIndex: 2, streakBefore: 4},
			expect: scoreResult{isCorrect: true, isFirstCorrect: true, points: 3, streakAfter: 5},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scoreAnswer(tc.in); got != tc.expect {
				t.Fatalf("expected %+v, got %+v", tc.expect, got)
			}
		})
	}
}
