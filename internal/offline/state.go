package offline

import (
	"slices"
	"sort"

	"github.com/dmitrijs2005/choirsync/internal/client/models"
)

// State is the normalized domain data. Attendance records are unique per
// date within a user; transactions are unique by ID.
type State struct {
	Users        map[string]models.User               `json:"users"`
	Attendance   map[string][]models.AttendanceRecord `json:"attendance"`
	Transactions map[string][]models.Transaction      `json:"transactions"`
}

// NewState returns the empty-but-valid default.
func NewState() State {
	return State{
		Users:        map[string]models.User{},
		Attendance:   map[string][]models.AttendanceRecord{},
		Transactions: map[string][]models.Transaction{},
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := NewState()
	for k, v := range s.Users {
		out.Users[k] = v
	}
	for k, v := range s.Attendance {
		out.Attendance[k] = slices.Clone(v)
	}
	for k, v := range s.Transactions {
		out.Transactions[k] = slices.Clone(v)
	}
	return out
}

// normalize replaces nil maps so that a decoded snapshot is always usable.
func (s *State) normalize() {
	if s.Users == nil {
		s.Users = map[string]models.User{}
	}
	if s.Attendance == nil {
		s.Attendance = map[string][]models.AttendanceRecord{}
	}
	if s.Transactions == nil {
		s.Transactions = map[string][]models.Transaction{}
	}
}

// UserList returns the users sorted by last then first name.
func (s State) UserList() []models.User {
	out := make([]models.User, 0, len(s.Users))
	for _, u := range s.Users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s State) attendanceAt(userID, date string) (models.AttendanceRecord, bool) {
	for _, r := range s.Attendance[userID] {
		if r.Date == date {
			return r, true
		}
	}
	return models.AttendanceRecord{}, false
}

func (s *State) upsertAttendance(r models.AttendanceRecord) {
	recs := s.Attendance[r.UserID]
	for i := range recs {
		if recs[i].Date == r.Date {
			recs[i] = r
			return
		}
	}
	recs = append(recs, r)
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Date < recs[j].Date })
	s.Attendance[r.UserID] = recs
}

func (s *State) removeAttendance(userID, date string) {
	recs := slices.DeleteFunc(s.Attendance[userID], func(r models.AttendanceRecord) bool {
		return r.Date == date
	})
	if len(recs) == 0 {
		delete(s.Attendance, userID)
		return
	}
	s.Attendance[userID] = recs
}

func (s *State) upsertTransaction(t models.Transaction) {
	txs := s.Transactions[t.UserID]
	for i := range txs {
		if txs[i].ID == t.ID {
			txs[i] = t
			return
		}
	}
	s.Transactions[t.UserID] = append(txs, t)
}

func (s *State) removeTransaction(userID, id string) {
	txs := slices.DeleteFunc(s.Transactions[userID], func(t models.Transaction) bool {
		return t.ID == id
	})
	if len(txs) == 0 {
		delete(s.Transactions, userID)
		return
	}
	s.Transactions[userID] = txs
}

// dedupeByDate keeps the last record for each date, sorted by date.
func dedupeByDate(in []models.AttendanceRecord) []models.AttendanceRecord {
	byDate := make(map[string]int, len(in))
	out := make([]models.AttendanceRecord, 0, len(in))
	for _, r := range in {
		if i, ok := byDate[r.Date]; ok {
			out[i] = r
			continue
		}
		byDate[r.Date] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// dedupeByID keeps the last transaction for each ID, in first-seen order.
func dedupeByID(in []models.Transaction) []models.Transaction {
	byID := make(map[string]int, len(in))
	out := make([]models.Transaction, 0, len(in))
	for _, t := range in {
		if i, ok := byID[t.ID]; ok {
			out[i] = t
			continue
		}
		byID[t.ID] = len(out)
		out = append(out, t)
	}
	return out
}
