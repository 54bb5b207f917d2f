package models

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsKnownTrack(t *testing.T) {
	assert.True(t, IsKnownTrack("problem_solving"))
	assert.True(t, IsKnownTrack("robotics"))
	assert.False(t, IsKnownTrack("cooking"))
	assert.False(t, IsKnownTrack(""))
	assert.False(t, IsKnownTrack("Problem_Solving"))
}

func TestIsValidSubmissionStatus(t *testing.T) {
	for _, status := range []string{"ACCEPTED", "WRONG_ANSWER", "SYNTAX_ERROR", "LOGIC_ERROR", "RUNTIME_ERROR"} {
		assert.True(t, IsValidSubmissionStatus(status), status)
	}
	assert.False(t, IsValidSubmissionStatus("PARTIAL"))
	assert.False(t, IsValidSubmissionStatus("accepted"))
	assert.False(t, IsValidSubmissionStatus(""))
}

func TestUser_MarshalJSON(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("null fields become JSON null", func(t *testing.T) {
		u := User{
			ID:        1,
			Username:  "ayham",
			CreatedAt: now,
			UpdatedAt: now,
		}

		data, err := json.Marshal(u)
		require.NoError(t, err)

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &out))

		assert.Equal(t, "ayham", out["username"])
		assert.Nil(t, out["email"])
		assert.Nil(t, out["preferred_track"])
		assert.NotContains(t, out, "password_hash")
	})

	t.Run("valid fields serialize as values", func(t *testing.T) {
		u := User{
			ID:             2,
			Username:       "omar",
			Email:          sql.NullString{String: "omar@example.com", Valid: true},
			PasswordHash:   sql.NullString{String: "secret-hash", Valid: true},
			PreferredTrack: sql.NullString{String: "robotics", Valid: true},
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		data, err := json.Marshal(u)
		require.NoError(t, err)

		var out map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &out))

		assert.Equal(t, "omar@example.com", out["email"])
		assert.Equal(t, "robotics", out["preferred_track"])
		assert.NotContains(t, string(data), "secret-hash")
	})
}

func TestProblem_MarshalJSON(t *testing.T) {
	p := Problem{
		ID:         3,
		Topic:      "LOOP",
		Difficulty: "Easy",
		TitleEn:    "Ayham's Reels",
		DescEn:     "Find 4 consecutive even numbers whose sum equals x.",
		SampleIO: []SampleIO{
			{Input: "20", Output: "2 4 6 8", Explanation: "2 + 4 + 6 + 8 = 20."},
		},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "Ayham's Reels", out["title_en"])
	assert.Nil(t, out["title_ar"])
	assert.Nil(t, out["constraints"])

	samples, ok := out["sample_io"].([]interface{})
	require.True(t, ok)
	require.Len(t, samples, 1)
	first := samples[0].(map[string]interface{})
	assert.Equal(t, "20", first["input"])
}

func TestProblem_MarshalJSON_NilSampleIO(t *testing.T) {
	p := Problem{ID: 4, Topic: "IO", Difficulty: "Easy", TitleEn: "t", DescEn: "d"}

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	// nil slice serializes as [] rather than null
	samples, ok := out["sample_io"].([]interface{})
	require.True(t, ok)
	assert.Empty(t, samples)
}

func TestSubmission_MarshalJSON(t *testing.T) {
	s := Submission{
		ID:     "7f9c24e5-27aa-46c1-a2f2-f1ae0c7a639d",
		UserID: 9,
		Code:   "int main() { return 0; }",
		Status: StatusAccepted,
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))

	assert.Equal(t, "ACCEPTED", out["status"])
	assert.Nil(t, out["problem_id"])
	assert.Nil(t, out["ai_feedback"])
}

func TestChatHistory_MessagesRoundTrip(t *testing.T) {
	h := ChatHistory{
		ID:     "a5ec7d1c-0df9-4c1a-a7ce-55b1b34f6a10",
		UserID: 1,
		Track:  TrackProblemSolving,
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "كيف أطبع مصفوفة؟"},
			{Role: RoleAssistant, Content: "استخدم حلقة for."},
		},
	}

	data, err := json.Marshal(h.Messages)
	require.NoError(t, err)

	var decoded []ChatMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, h.Messages, decoded)
}
