package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/choirsync/internal/client/client"
	"github.com/dmitrijs2005/choirsync/internal/client/models"
	"github.com/dmitrijs2005/choirsync/internal/common"
	"github.com/dmitrijs2005/choirsync/internal/offline"
)

// Dispatcher is the part of offline.Store the registry service drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, a offline.Action)
}

// RegistryService turns CLI commands into API reads and queued actions.
// Reads go straight to the server and replace the local slice; writes are
// dispatched optimistically and reach the server through the queue.
type RegistryService struct {
	client client.Client
	store  Dispatcher
}

func NewRegistryService(c client.Client, store Dispatcher) *RegistryService {
	return &RegistryService{client: c, store: store}
}

func (s *RegistryService) RefreshUsers(ctx context.Context) ([]models.User, error) {
	users, err := fetchList[models.User](ctx, s.client, "/users")
	if err != nil {
		return nil, err
	}
	s.store.Dispatch(ctx, offline.ReplaceUsers{Users: users})
	return users, nil
}

func (s *RegistryService) RefreshAttendance(ctx context.Context, userID string) ([]models.AttendanceRecord, error) {
	recs, err := fetchList[models.AttendanceRecord](ctx, s.client, "/attendance/"+url.PathEscape(userID))
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if recs[i].UserID == "" {
			recs[i].UserID = userID
		}
	}
	s.store.Dispatch(ctx, offline.ReplaceAttendance{UserID: userID, Records: recs})
	return recs, nil
}

func (s *RegistryService) RefreshTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	txs, err := fetchList[models.Transaction](ctx, s.client, "/transactions/"+url.PathEscape(userID))
	if err != nil {
		return nil, err
	}
	for i := range txs {
		if txs[i].UserID == "" {
			txs[i].UserID = userID
		}
	}
	s.store.Dispatch(ctx, offline.ReplaceTransactions{UserID: userID, Transactions: txs})
	return txs, nil
}

// MarkAttendance records status for userID on date (YYYY-MM-DD).
func (s *RegistryService) MarkAttendance(ctx context.Context, userID, date, status, note string) error {
	if !models.ValidDate(date) {
		return common.ErrInvalidDate
	}
	st, ok := models.ParseAttendanceStatus(status)
	if !ok {
		return fmt.Errorf("%w: %q", common.ErrInvalidStatus, status)
	}

	rec := models.AttendanceRecord{UserID: userID, Date: date, Status: st, Note: note}
	eff, err := offline.NewEffect(http.MethodPost, "/attendance/"+url.PathEscape(userID), rec)
	if err != nil {
		return err
	}
	s.store.Dispatch(ctx, offline.MarkAttendance{Record: rec, Effect: eff})
	return nil
}

// RecordTransaction queues a money movement. An empty Type means a
// contribution.
func (s *RegistryService) RecordTransaction(ctx context.Context, tx models.Transaction) error {
	if !models.ValidDate(tx.Date) {
		return common.ErrInvalidDate
	}
	if tx.Amount <= 0 {
		return common.ErrInvalidAmount
	}
	if tx.Type == "" {
		tx.Type = models.TransactionContribution
	}

	eff, err := offline.NewEffect(http.MethodPost, "/transactions/"+url.PathEscape(tx.UserID), tx)
	if err != nil {
		return err
	}
	s.store.Dispatch(ctx, offline.RecordTransaction{Transaction: tx, Effect: eff})
	return nil
}

// SaveUser updates u, or creates it when u.ID is empty.
func (s *RegistryService) SaveUser(ctx context.Context, u models.User) error {
	method, path := http.MethodPut, "/users/"+url.PathEscape(u.ID)
	if u.ID == "" {
		method, path = http.MethodPost, "/users"
	}
	eff, err := offline.NewEffect(method, path, u)
	if err != nil {
		return err
	}
	s.store.Dispatch(ctx, offline.SaveUser{User: u, Effect: eff})
	return nil
}

// ExportAttendance queues the download of the attendance report for the
// inclusive range [from, to]. Either bound may be empty.
func (s *RegistryService) ExportAttendance(ctx context.Context, from, to string) error {
	q := url.Values{}
	for k, v := range map[string]string{"from": from, "to": to} {
		if v == "" {
			continue
		}
		if !models.ValidDate(v) {
			return fmt.Errorf("%w: %s=%q", common.ErrInvalidDate, k, v)
		}
		q.Set(k, v)
	}

	path := "/reports/attendance"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	eff, err := offline.NewEffect(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	eff.ResponseType = offline.ResponseBlob
	s.store.Dispatch(ctx, offline.ExportReport{Report: "attendance", From: from, To: to, Effect: eff})
	return nil
}

// fetchList GETs path and decodes a JSON array, bare or under "data".
func fetchList[T any](ctx context.Context, c client.Client, path string) ([]T, error) {
	resp, err := c.Do(ctx, client.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", path, err)
	}

	body := json.RawMessage(resp.Body)
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		body = wrapped.Data
	}

	var out []T
	if len(body) == 0 || string(body) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return out, nil
}
