package checkin

import (
	"sort"
	"strings"

	"gatescan/internal/models"
)

// answerAdmissible reports whether a value answers a question. Boolean
// questions require a literal affirmative; everything else just needs a
// non-empty value.
func answerAdmissible(q *models.Question, value string) bool {
	if q.Type == models.QuestionTypeBoolean {
		return strings.EqualFold(strings.TrimSpace(value), "true")
	}
	return strings.TrimSpace(value) != ""
}

// CheckQuestions validates that every required check-in question of the
// matched item has an admissible answer, from the supplied answers or the
// answers stored on the position at checkout time.
//
// On failure: if the caller supplied no answers at all, the response lists
// every askable question in position order so prompting can start from
// scratch; otherwise it lists the required-but-missing questions followed by
// the optional-but-missing ones, each in descending position order.
func CheckQuestions(questions []*models.Question, itemID int64, position *models.OrderPosition, supplied map[int64]string) *Response {
	var askable, missingRequired, missingOptional []*models.Question

	for _, q := range questions {
		if !q.AskDuringCheckIn || !q.AppliesTo(itemID) {
			continue
		}
		askable = append(askable, q)

		value, ok := supplied[q.ID]
		if !ok && position != nil {
			value, _ = position.AnswerFor(q.ID)
		}
		if answerAdmissible(q, value) {
			continue
		}
		if q.Required {
			missingRequired = append(missingRequired, q)
		} else {
			missingOptional = append(missingOptional, q)
		}
	}

	if len(missingRequired) == 0 {
		return nil
	}

	resp := &Response{Status: StatusIncomplete, Reason: ""}
	if len(supplied) == 0 {
		resp.Questions = askable
		return resp
	}

	byPositionDesc := func(qs []*models.Question) {
		sort.SliceStable(qs, func(i, j int) bool {
			return qs[i].Position > qs[j].Position
		})
	}
	byPositionDesc(missingRequired)
	byPositionDesc(missingOptional)
	resp.Questions = append(missingRequired, missingOptional...)
	return resp
}
