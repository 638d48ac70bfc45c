package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/takeoff-app/takeoff/model"
	"github.com/takeoff-app/takeoff/testutil"
	"gorm.io/datatypes"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	sess := &model.Session{
		ID:          "2f1d4c8e-0000-4000-8000-000000000001",
		UserID:      "user-1",
		SealedToken: []byte{1, 2, 3},
		Profile:     datatypes.JSON(`{"full_name":"Ada"}`),
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(sess).Error)

	var found model.Session
	require.NoError(t, db.First(&found, "id = ?", sess.ID).Error)
	assert.Equal(t, "user-1", found.UserID)
	assert.Equal(t, []byte{1, 2, 3}, found.SealedToken)
	assert.False(t, found.JustOnboarded)
	assert.JSONEq(t, `{"full_name":"Ada"}`, string(found.Profile))

	al := &model.ActivityLog{
		TraceID: "trace-001",
		UserID:  "user-1",
		Action:  "task_complete",
		Pillar:  "health",
		XP:      20,
	}
	require.NoError(t, db.Create(al).Error)
	assert.Greater(t, al.ID, int64(0))
	assert.False(t, al.CreatedAt.IsZero())
}
