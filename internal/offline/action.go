package offline

import (
	"encoding/json"

	"github.com/dmitrijs2005/choirsync/internal/client/models"
)

// Kind names an action on the wire and in logs.
type Kind string

const (
	KindUsersReplace        Kind = "users/replace"
	KindAttendanceReplace   Kind = "attendance/replace"
	KindTransactionsReplace Kind = "transactions/replace"

	KindUserSave         Kind = "users/save"
	KindUserSaveCommit   Kind = "users/save_commit"
	KindUserSaveRollback Kind = "users/save_rollback"

	KindAttendanceMark         Kind = "attendance/mark"
	KindAttendanceMarkCommit   Kind = "attendance/mark_commit"
	KindAttendanceMarkRollback Kind = "attendance/mark_rollback"

	KindTransactionRecord         Kind = "transactions/record"
	KindTransactionRecordCommit   Kind = "transactions/record_commit"
	KindTransactionRecordRollback Kind = "transactions/record_rollback"

	KindReportExport         Kind = "reports/export"
	KindReportExportCommit   Kind = "reports/export_commit"
	KindReportExportRollback Kind = "reports/export_rollback"
)

// Action is a state transition. The set of actions is closed: only the
// types in this file implement it.
type Action interface {
	Kind() Kind
	isAction()
}

// optimistic actions mutate state immediately and carry a network effect.
type optimistic interface {
	Action
	effect() Effect
}

// committer is a commit action awaiting the effect's result.
type committer interface {
	Action
	withResult(Result) Action
}

// rollbacker is a rollback action awaiting the failure.
type rollbacker interface {
	Action
	withFailure(reason string, status int) Action
}

// Failure describes why an effect was given up.
type Failure struct {
	Reason string `json:"reason,omitempty"`
	Status int    `json:"status,omitempty"`
}

// Local replaces. No effect.

type ReplaceUsers struct {
	Users []models.User `json:"users"`
}

type ReplaceAttendance struct {
	UserID  string                    `json:"userId"`
	Records []models.AttendanceRecord `json:"records"`
}

type ReplaceTransactions struct {
	UserID       string               `json:"userId"`
	Transactions []models.Transaction `json:"transactions"`
}

// SaveUser creates or updates a member. An empty ID gets a temporary one
// that the commit swaps for the server's.
type SaveUser struct {
	User   models.User `json:"user"`
	Effect Effect      `json:"effect"`
}

type SaveUserCommit struct {
	User     models.User     `json:"user"`
	Response json.RawMessage `json:"response,omitempty"`
}

// SaveUserRollback restores Previous, or removes the user when nil.
type SaveUserRollback struct {
	UserID   string       `json:"userId"`
	Previous *models.User `json:"previous,omitempty"`
	Failure
}

// MarkAttendance upserts the record for (UserID, Date).
type MarkAttendance struct {
	Record models.AttendanceRecord `json:"record"`
	Effect Effect                  `json:"effect"`
}

type MarkAttendanceCommit struct {
	Record   models.AttendanceRecord `json:"record"`
	Response json.RawMessage         `json:"response,omitempty"`
}

// MarkAttendanceRollback restores the record for Date as it was before the
// mark, or removes it when Previous is nil.
type MarkAttendanceRollback struct {
	UserID   string                   `json:"userId"`
	Date     string                   `json:"date"`
	Previous *models.AttendanceRecord `json:"previous,omitempty"`
	Failure
}

// RecordTransaction appends a transaction. An empty ID gets a temporary one.
type RecordTransaction struct {
	Transaction models.Transaction `json:"transaction"`
	Effect      Effect             `json:"effect"`
}

type RecordTransactionCommit struct {
	Transaction models.Transaction `json:"transaction"`
	Response    json.RawMessage    `json:"response,omitempty"`
}

type RecordTransactionRollback struct {
	UserID        string `json:"userId"`
	TransactionID string `json:"transactionId"`
	Failure
}

// ExportReport downloads a report file. It does not change state.
type ExportReport struct {
	Report string `json:"report"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Effect Effect `json:"effect"`
}

type ExportReportCommit struct {
	Report   string `json:"report"`
	Location string `json:"location,omitempty"`
}

type ExportReportRollback struct {
	Report string `json:"report"`
	Failure
}

func (ReplaceUsers) Kind() Kind              { return KindUsersReplace }
func (ReplaceAttendance) Kind() Kind         { return KindAttendanceReplace }
func (ReplaceTransactions) Kind() Kind       { return KindTransactionsReplace }
func (SaveUser) Kind() Kind                  { return KindUserSave }
func (SaveUserCommit) Kind() Kind            { return KindUserSaveCommit }
func (SaveUserRollback) Kind() Kind          { return KindUserSaveRollback }
func (MarkAttendance) Kind() Kind            { return KindAttendanceMark }
func (MarkAttendanceCommit) Kind() Kind      { return KindAttendanceMarkCommit }
func (MarkAttendanceRollback) Kind() Kind    { return KindAttendanceMarkRollback }
func (RecordTransaction) Kind() Kind         { return KindTransactionRecord }
func (RecordTransactionCommit) Kind() Kind   { return KindTransactionRecordCommit }
func (RecordTransactionRollback) Kind() Kind { return KindTransactionRecordRollback }
func (ExportReport) Kind() Kind              { return KindReportExport }
func (ExportReportCommit) Kind() Kind        { return KindReportExportCommit }
func (ExportReportRollback) Kind() Kind      { return KindReportExportRollback }

func (ReplaceUsers) isAction()              {}
func (ReplaceAttendance) isAction()         {}
func (ReplaceTransactions) isAction()       {}
func (SaveUser) isAction()                  {}
func (SaveUserCommit) isAction()            {}
func (SaveUserRollback) isAction()          {}
func (MarkAttendance) isAction()            {}
func (MarkAttendanceCommit) isAction()      {}
func (MarkAttendanceRollback) isAction()    {}
func (RecordTransaction) isAction()         {}
func (RecordTransactionCommit) isAction()   {}
func (RecordTransactionRollback) isAction() {}
func (ExportReport) isAction()              {}
func (ExportReportCommit) isAction()        {}
func (ExportReportRollback) isAction()      {}

func (a SaveUser) effect() Effect          { return a.Effect }
func (a MarkAttendance) effect() Effect    { return a.Effect }
func (a RecordTransaction) effect() Effect { return a.Effect }
func (a ExportReport) effect() Effect      { return a.Effect }

func (a SaveUserCommit) withResult(r Result) Action {
	a.Response = r.Body
	return a
}

func (a MarkAttendanceCommit) withResult(r Result) Action {
	a.Response = r.Body
	return a
}

func (a RecordTransactionCommit) withResult(r Result) Action {
	a.Response = r.Body
	return a
}

func (a ExportReportCommit) withResult(r Result) Action {
	a.Location = r.Location
	return a
}

func (a SaveUserRollback) withFailure(reason string, status int) Action {
	a.Failure = Failure{Reason: reason, Status: status}
	return a
}

func (a MarkAttendanceRollback) withFailure(reason string, status int) Action {
	a.Failure = Failure{Reason: reason, Status: status}
	return a
}

func (a RecordTransactionRollback) withFailure(reason string, status int) Action {
	a.Failure = Failure{Reason: reason, Status: status}
	return a
}

func (a ExportReportRollback) withFailure(reason string, status int) Action {
	a.Failure = Failure{Reason: reason, Status: status}
	return a
}
