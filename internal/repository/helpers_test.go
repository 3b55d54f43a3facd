package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forgo/planner/api/internal/model"
)

func TestRecordID(t *testing.T) {
	tests := []struct {
		name  string
		table string
		in    string
		want  string
		ok    bool
	}{
		{"bare id", "job", "abc", "job:abc", true},
		{"full id", "job", "job:abc", "job:abc", true},
		{"trims whitespace", "job", "  abc ", "job:abc", true},
		{"wrong table", "job", "recruitment:abc", "", false},
		{"empty", "job", "", "", false},
		{"empty key", "job", "job:", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := recordID(tt.table, tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatementRecords(t *testing.T) {
	result := []interface{}{
		map[string]interface{}{"result": []interface{}{"a"}},
		map[string]interface{}{"result": nil},
		map[string]interface{}{"result": []interface{}{"b", "c"}},
	}

	assert.Equal(t, []interface{}{"a"}, statementRecords(result, 0))
	assert.Nil(t, statementRecords(result, 1))
	assert.Nil(t, statementRecords(result, 5))
	assert.Equal(t, []interface{}{"a", "b", "c"}, allRecords(result))
}

func TestGetTime(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := map[string]interface{}{
		"str":  at.Format(time.RFC3339Nano),
		"time": at,
		"bad":  "yesterday",
	}

	assert.True(t, at.Equal(*getTime(m, "str")))
	assert.True(t, at.Equal(*getTime(m, "time")))
	assert.Nil(t, getTime(m, "bad"))
	assert.Nil(t, getTime(m, "missing"))
}

func TestClampExecutionTime(t *testing.T) {
	assert.Equal(t, model.DefaultMaxExecutionTime, clampExecutionTime(0))
	assert.Equal(t, model.MinMaxExecutionTime, clampExecutionTime(3))
	assert.Equal(t, 120, clampExecutionTime(120))
	assert.Equal(t, model.MaxMaxExecutionTime, clampExecutionTime(100000))
}

func TestDocumentRoundTrip(t *testing.T) {
	problem := model.ProblemData{
		Constraints: map[string]interface{}{"rooms": float64(2)},
		Preferences: model.ProblemPreferences{
			Students:   []interface{}{},
			Teachers:   []interface{}{},
			Management: map[string]interface{}{},
		},
		MaxExecutionTime: 60,
	}

	doc, err := toDocument(problem)
	assert.NoError(t, err)
	assert.Contains(t, doc, "constraints")
	assert.Contains(t, doc, "max_execution_time")

	var back model.ProblemData
	assert.NoError(t, fromDocument(doc, &back))
	assert.Equal(t, problem, back)
}
