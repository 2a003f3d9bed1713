package offline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type actionJSON struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalAction encodes a as {"type": kind, "payload": {...}}.
func MarshalAction(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", a.Kind(), err)
	}
	return json.Marshal(actionJSON{Type: a.Kind(), Payload: payload})
}

// UnmarshalAction is the inverse of MarshalAction.
func UnmarshalAction(b []byte) (Action, error) {
	var env actionJSON
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal action: %w", err)
	}

	switch env.Type {
	case KindUsersReplace:
		return decodePayload[ReplaceUsers](env)
	case KindAttendanceReplace:
		return decodePayload[ReplaceAttendance](env)
	case KindTransactionsReplace:
		return decodePayload[ReplaceTransactions](env)
	case KindUserSave:
		return decodePayload[SaveUser](env)
	case KindUserSaveCommit:
		return decodePayload[SaveUserCommit](env)
	case KindUserSaveRollback:
		return decodePayload[SaveUserRollback](env)
	case KindAttendanceMark:
		return decodePayload[MarkAttendance](env)
	case KindAttendanceMarkCommit:
		return decodePayload[MarkAttendanceCommit](env)
	case KindAttendanceMarkRollback:
		return decodePayload[MarkAttendanceRollback](env)
	case KindTransactionRecord:
		return decodePayload[RecordTransaction](env)
	case KindTransactionRecordCommit:
		return decodePayload[RecordTransactionCommit](env)
	case KindTransactionRecordRollback:
		return decodePayload[RecordTransactionRollback](env)
	case KindReportExport:
		return decodePayload[ExportReport](env)
	case KindReportExportCommit:
		return decodePayload[ExportReportCommit](env)
	case KindReportExportRollback:
		return decodePayload[ExportReportRollback](env)
	}
	return nil, fmt.Errorf("unknown action type %q", env.Type)
}

func decodePayload[T Action](env actionJSON) (Action, error) {
	var v T
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
		}
	}
	return v, nil
}

type entryJSON struct {
	ID            uuid.UUID       `json:"id"`
	Action        json.RawMessage `json:"action"`
	Effect        Effect          `json:"effect"`
	Commit        json.RawMessage `json:"commit"`
	Rollback      json.RawMessage `json:"rollback"`
	Attempts      int             `json:"attempts"`
	Parked        bool            `json:"parked,omitempty"`
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	act, err := MarshalAction(e.Action)
	if err != nil {
		return nil, err
	}
	commit, err := MarshalAction(e.Commit)
	if err != nil {
		return nil, err
	}
	rollback, err := MarshalAction(e.Rollback)
	if err != nil {
		return nil, err
	}
	return json.Marshal(entryJSON{
		ID:            e.ID,
		Action:        act,
		Effect:        e.Effect,
		Commit:        commit,
		Rollback:      rollback,
		Attempts:      e.Attempts,
		Parked:        e.Parked,
		EnqueuedAt:    e.EnqueuedAt,
		NextAttemptAt: e.NextAttemptAt,
	})
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	act, err := UnmarshalAction(raw.Action)
	if err != nil {
		return err
	}
	opt, ok := act.(optimistic)
	if !ok {
		return fmt.Errorf("entry %s: %s carries no effect", raw.ID, act.Kind())
	}
	commit, err := UnmarshalAction(raw.Commit)
	if err != nil {
		return err
	}
	c, ok := commit.(committer)
	if !ok {
		return fmt.Errorf("entry %s: %s is not a commit", raw.ID, commit.Kind())
	}
	rollback, err := UnmarshalAction(raw.Rollback)
	if err != nil {
		return err
	}
	r, ok := rollback.(rollbacker)
	if !ok {
		return fmt.Errorf("entry %s: %s is not a rollback", raw.ID, rollback.Kind())
	}

	*e = Entry{
		ID:            raw.ID,
		Action:        opt,
		Effect:        raw.Effect,
		Commit:        c,
		Rollback:      r,
		Attempts:      raw.Attempts,
		Parked:        raw.Parked,
		EnqueuedAt:    raw.EnqueuedAt,
		NextAttemptAt: raw.NextAttemptAt,
	}
	return nil
}
