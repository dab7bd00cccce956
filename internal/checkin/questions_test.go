package checkin_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatescan/internal/checkin"
	"gatescan/internal/models"
)

func question(id int64, qType string, required bool, position int) *models.Question {
	return &models.Question{
		ID: id, EventSlug: testEvent, Type: qType, Required: required,
		AskDuringCheckIn: true, Position: position, ItemIDs: []int64{3},
	}
}

func TestQuestionsCompleteWhenAllAnswered(t *testing.T) {
	qs := []*models.Question{
		question(1, models.QuestionTypeText, true, 1),
		question(2, models.QuestionTypeBoolean, true, 2),
	}
	resp := checkin.CheckQuestions(qs, 3, nil, map[int64]string{1: "Jane", 2: "true"})
	assert.Nil(t, resp)
}

func TestBooleanQuestionNeedsAffirmative(t *testing.T) {
	qs := []*models.Question{question(2, models.QuestionTypeBoolean, true, 1)}

	resp := checkin.CheckQuestions(qs, 3, nil, map[int64]string{2: "false"})
	require.NotNil(t, resp)
	assert.Equal(t, checkin.StatusIncomplete, resp.Status)

	assert.Nil(t, checkin.CheckQuestions(qs, 3, nil, map[int64]string{2: "TRUE"}))
	assert.Nil(t, checkin.CheckQuestions(qs, 3, nil, map[int64]string{2: " true "}))
}

func TestStoredAnswersSatisfyQuestions(t *testing.T) {
	qs := []*models.Question{question(1, models.QuestionTypeText, true, 1)}
	pos := &models.OrderPosition{
		ID: 100, ItemID: 3,
		Answers: []*models.Answer{{PositionID: 100, QuestionID: 1, Value: "Jane"}},
	}
	assert.Nil(t, checkin.CheckQuestions(qs, 3, pos, nil))
}

func TestSuppliedAnswerOverridesStored(t *testing.T) {
	qs := []*models.Question{question(1, models.QuestionTypeText, true, 1)}
	pos := &models.OrderPosition{
		ID: 100, ItemID: 3,
		Answers: []*models.Answer{{PositionID: 100, QuestionID: 1, Value: "Jane"}},
	}
	// An explicitly supplied empty value is not admissible even though a
	// stored answer exists under the same key.
	resp := checkin.CheckQuestions(qs, 3, pos, map[int64]string{1: ""})
	require.NotNil(t, resp)
	assert.Equal(t, checkin.StatusIncomplete, resp.Status)
}

func TestQuestionsSkipOtherItems(t *testing.T) {
	q := question(1, models.QuestionTypeText, true, 1)
	q.ItemIDs = []int64{99}
	assert.Nil(t, checkin.CheckQuestions([]*models.Question{q}, 3, nil, nil))
}

func TestQuestionsSkipNonCheckInOnes(t *testing.T) {
	q := question(1, models.QuestionTypeText, true, 1)
	q.AskDuringCheckIn = false
	assert.Nil(t, checkin.CheckQuestions([]*models.Question{q}, 3, nil, nil))
}

func TestMissingOptionalAloneDoesNotBlock(t *testing.T) {
	qs := []*models.Question{
		question(1, models.QuestionTypeText, true, 1),
		question(2, models.QuestionTypeText, false, 2),
	}
	assert.Nil(t, checkin.CheckQuestions(qs, 3, nil, map[int64]string{1: "Jane"}))
}

func TestNoAnswersListsEveryAskableQuestion(t *testing.T) {
	qs := []*models.Question{
		question(2, models.QuestionTypeText, false, 2),
		question(1, models.QuestionTypeText, true, 1),
	}
	// Questions arrive position-ordered from the store; with no answers at
	// all the full askable list keeps that order.
	resp := checkin.CheckQuestions([]*models.Question{qs[1], qs[0]}, 3, nil, nil)
	require.NotNil(t, resp)
	require.Len(t, resp.Questions, 2)
	assert.Equal(t, int64(1), resp.Questions[0].ID)
	assert.Equal(t, int64(2), resp.Questions[1].ID)
}

func TestPartialAnswersListMissingByDescendingPosition(t *testing.T) {
	qs := []*models.Question{
		question(1, models.QuestionTypeText, true, 1),
		question(2, models.QuestionTypeText, true, 2),
		question(3, models.QuestionTypeText, true, 3),
		question(4, models.QuestionTypeText, false, 4),
	}
	resp := checkin.CheckQuestions(qs, 3, nil, map[int64]string{1: "answered"})
	require.NotNil(t, resp)
	require.Len(t, resp.Questions, 3)
	// Required missing first, higher position first, then optional missing.
	assert.Equal(t, int64(3), resp.Questions[0].ID)
	assert.Equal(t, int64(2), resp.Questions[1].ID)
	assert.Equal(t, int64(4), resp.Questions[2].ID)
}
