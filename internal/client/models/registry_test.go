package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAttendanceStatus(t *testing.T) {
	tests := []struct {
		in   string
		want AttendanceStatus
		ok   bool
	}{
		{"present", AttendancePresent, true},
		{" LATE ", AttendanceLate, true},
		{"Excused", AttendanceExcused, true},
		{"sick", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseAttendanceStatus(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestValidDate(t *testing.T) {
	assert.True(t, ValidDate("2024-03-10"))
	assert.False(t, ValidDate("10/03/2024"))
	assert.False(t, ValidDate("2024-02-30"))
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, Session{}.Expired(now))
	assert.False(t, Session{ExpiresAt: now.Add(time.Minute)}.Expired(now))
	assert.True(t, Session{ExpiresAt: now}.Expired(now))
}

func TestUser_FullName(t *testing.T) {
	assert.Equal(t, "Grace Mbuyi", User{FirstName: "Grace", LastName: "Mbuyi"}.FullName())
	assert.Equal(t, "Grace", User{FirstName: "Grace"}.FullName())
}
