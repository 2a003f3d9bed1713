package offline

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/choirsync/internal/client/models"
)

// tempIDPrefix marks ids assigned locally before the server answers.
const tempIDPrefix = "tmp-"

func newTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// prepare fills in local ids and captures, from the pre-dispatch state, the
// commit and rollback actions for a.
func prepare(st *State, a optimistic) (optimistic, committer, rollbacker) {
	switch a := a.(type) {
	case SaveUser:
		if a.User.ID == "" {
			a.User.ID = newTempID()
		}
		rb := SaveUserRollback{UserID: a.User.ID}
		if prev, ok := st.Users[a.User.ID]; ok {
			rb.Previous = &prev
		}
		return a, SaveUserCommit{User: a.User}, rb

	case MarkAttendance:
		rb := MarkAttendanceRollback{UserID: a.Record.UserID, Date: a.Record.Date}
		if prev, ok := st.attendanceAt(a.Record.UserID, a.Record.Date); ok {
			rb.Previous = &prev
		}
		return a, MarkAttendanceCommit{Record: a.Record}, rb

	case RecordTransaction:
		if a.Transaction.ID == "" {
			a.Transaction.ID = newTempID()
		}
		rb := RecordTransactionRollback{UserID: a.Transaction.UserID, TransactionID: a.Transaction.ID}
		return a, RecordTransactionCommit{Transaction: a.Transaction}, rb

	case ExportReport:
		return a, ExportReportCommit{Report: a.Report}, ExportReportRollback{Report: a.Report}
	}
	panic(fmt.Sprintf("offline: no preparation for %T", a))
}

// reduce applies a to st. Every action type must be handled here.
func reduce(st *State, a Action) {
	switch a := a.(type) {
	case ReplaceUsers:
		st.Users = make(map[string]models.User, len(a.Users))
		for _, u := range a.Users {
			st.Users[u.ID] = u
		}

	case ReplaceAttendance:
		if len(a.Records) == 0 {
			delete(st.Attendance, a.UserID)
			return
		}
		st.Attendance[a.UserID] = dedupeByDate(a.Records)

	case ReplaceTransactions:
		if len(a.Transactions) == 0 {
			delete(st.Transactions, a.UserID)
			return
		}
		st.Transactions[a.UserID] = dedupeByID(a.Transactions)

	case SaveUser:
		st.Users[a.User.ID] = a.User

	case SaveUserCommit:
		var server models.User
		if !decodeEntity(a.Response, &server) || server.ID == "" {
			return
		}
		if server.ID != a.User.ID {
			delete(st.Users, a.User.ID)
		}
		st.Users[server.ID] = server

	case SaveUserRollback:
		if a.Previous == nil {
			delete(st.Users, a.UserID)
			return
		}
		st.Users[a.UserID] = *a.Previous

	case MarkAttendance:
		st.upsertAttendance(a.Record)

	case MarkAttendanceCommit:
		var server models.AttendanceRecord
		if !decodeEntity(a.Response, &server) || server.Date == "" {
			return
		}
		if server.UserID == "" {
			server.UserID = a.Record.UserID
		}
		if server.UserID != a.Record.UserID || server.Date != a.Record.Date {
			st.removeAttendance(a.Record.UserID, a.Record.Date)
		}
		st.upsertAttendance(server)

	case MarkAttendanceRollback:
		if a.Previous == nil {
			st.removeAttendance(a.UserID, a.Date)
			return
		}
		st.upsertAttendance(*a.Previous)

	case RecordTransaction:
		st.upsertTransaction(a.Transaction)

	case RecordTransactionCommit:
		var server models.Transaction
		if !decodeEntity(a.Response, &server) || server.ID == "" {
			return
		}
		if server.UserID == "" {
			server.UserID = a.Transaction.UserID
		}
		st.removeTransaction(a.Transaction.UserID, a.Transaction.ID)
		st.upsertTransaction(server)

	case RecordTransactionRollback:
		st.removeTransaction(a.UserID, a.TransactionID)

	case ExportReport, ExportReportCommit, ExportReportRollback:
		// downloads leave state alone

	default:
		panic(fmt.Sprintf("offline: unhandled action %T", a))
	}
}

// supersede hands the pre-image of a rejected write to the next queued
// entry that writes the same record. It reports whether one was found; the
// record then keeps the later optimistic value and rb must not be applied.
func supersede(rb Action, later []*Entry) bool {
	switch rb := rb.(type) {
	case SaveUserRollback:
		for _, e := range later {
			next, ok := e.Rollback.(SaveUserRollback)
			if !ok || next.UserID != rb.UserID {
				continue
			}
			next.Previous = rb.Previous
			e.Rollback = next
			return true
		}

	case MarkAttendanceRollback:
		for _, e := range later {
			next, ok := e.Rollback.(MarkAttendanceRollback)
			if !ok || next.UserID != rb.UserID || next.Date != rb.Date {
				continue
			}
			next.Previous = rb.Previous
			e.Rollback = next
			return true
		}
	}
	return false
}

// settle runs after commit was reduced. When later queued entries write the
// same record, the next one's rollback target becomes the settled value and
// their optimistic values are applied again on top of it.
func settle(st *State, commit Action, later []*Entry) {
	switch c := commit.(type) {
	case SaveUserCommit:
		settled := c.User
		var server models.User
		if decodeEntity(c.Response, &server) && server.ID != "" {
			if server.ID != c.User.ID {
				return
			}
			settled = server
		}
		rebased := false
		for _, e := range later {
			next, ok := e.Rollback.(SaveUserRollback)
			if !ok || next.UserID != settled.ID {
				continue
			}
			if !rebased {
				next.Previous = &settled
				e.Rollback = next
				rebased = true
			}
			reduce(st, e.Action)
		}

	case MarkAttendanceCommit:
		settled := c.Record
		var server models.AttendanceRecord
		if decodeEntity(c.Response, &server) && server.Date != "" {
			if server.UserID == "" {
				server.UserID = c.Record.UserID
			}
			if server.UserID != c.Record.UserID || server.Date != c.Record.Date {
				return
			}
			settled = server
		}
		rebased := false
		for _, e := range later {
			next, ok := e.Rollback.(MarkAttendanceRollback)
			if !ok || next.UserID != settled.UserID || next.Date != settled.Date {
				continue
			}
			if !rebased {
				next.Previous = &settled
				e.Rollback = next
				rebased = true
			}
			reduce(st, e.Action)
		}
	}
}

// decodeEntity decodes raw into v, accepting either the bare entity or an
// object wrapping it under "data".
func decodeEntity(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return false
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Data) > 0 && wrapped.Data[0] == '{' {
		raw = wrapped.Data
	}
	return json.Unmarshal(raw, v) == nil
}
