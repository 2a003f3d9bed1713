package services

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/choirsync/internal/client/client"
	"github.com/dmitrijs2005/choirsync/internal/client/models"
	"github.com/dmitrijs2005/choirsync/internal/common"
	"github.com/dmitrijs2005/choirsync/internal/offline"
)

type recordingDispatcher struct {
	actions []offline.Action
}

func (d *recordingDispatcher) Dispatch(_ context.Context, a offline.Action) {
	d.actions = append(d.actions, a)
}

func (d *recordingDispatcher) last(t *testing.T) offline.Action {
	t.Helper()
	require.NotEmpty(t, d.actions)
	return d.actions[len(d.actions)-1]
}

func jsonResp(body string) *client.Response {
	return &client.Response{Status: http.StatusOK, Body: []byte(body)}
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	fc := &fakeClient{DoResp: map[string]*client.Response{
		"GET /users":           jsonResp(`[{"id":"1","firstName":"Ana","role":"MEMBER"}]`),
		"GET /attendance/42":   jsonResp(`{"data":[{"date":"2024-03-10","status":"PRESENT"}]}`),
		"GET /transactions/42": jsonResp(`{"data":null}`),
	}}
	d := &recordingDispatcher{}
	svc := NewRegistryService(fc, d)

	users, err := svc.RefreshUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, offline.ReplaceUsers{Users: users}, d.last(t))
	assert.Equal(t, "Ana", users[0].FirstName)

	recs, err := svc.RefreshAttendance(ctx, "42")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "42", recs[0].UserID)
	assert.Equal(t, offline.ReplaceAttendance{UserID: "42", Records: recs}, d.last(t))

	txs, err := svc.RefreshTransactions(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, txs)
	assert.Equal(t, offline.KindTransactionsReplace, d.last(t).Kind())
}

func TestRefresh_ErrorDispatchesNothing(t *testing.T) {
	fc := &fakeClient{DoErr: client.ErrUnavailable}
	d := &recordingDispatcher{}
	svc := NewRegistryService(fc, d)

	_, err := svc.RefreshUsers(context.Background())
	require.ErrorIs(t, err, client.ErrUnavailable)
	assert.Empty(t, d.actions)
}

func TestMarkAttendance(t *testing.T) {
	d := &recordingDispatcher{}
	svc := NewRegistryService(&fakeClient{}, d)
	ctx := context.Background()

	require.NoError(t, svc.MarkAttendance(ctx, "42", "2024-03-10", "present", ""))
	mark, ok := d.last(t).(offline.MarkAttendance)
	require.True(t, ok)
	assert.Equal(t, models.AttendancePresent, mark.Record.Status)
	assert.Equal(t, "/attendance/42", mark.Effect.URL)
	assert.Equal(t, http.MethodPost, mark.Effect.Method)

	var body models.AttendanceRecord
	require.NoError(t, json.Unmarshal(mark.Effect.Body, &body))
	assert.Equal(t, mark.Record, body)

	assert.ErrorIs(t, svc.MarkAttendance(ctx, "42", "10/03/2024", "PRESENT", ""), common.ErrInvalidDate)
	assert.ErrorIs(t, svc.MarkAttendance(ctx, "42", "2024-03-10", "sleeping", ""), common.ErrInvalidStatus)
	assert.Len(t, d.actions, 1)
}

func TestRecordTransaction(t *testing.T) {
	d := &recordingDispatcher{}
	svc := NewRegistryService(&fakeClient{}, d)
	ctx := context.Background()

	require.NoError(t, svc.RecordTransaction(ctx, models.Transaction{UserID: "42", Amount: 20, Date: "2024-03-10"}))
	rec, ok := d.last(t).(offline.RecordTransaction)
	require.True(t, ok)
	assert.Equal(t, models.TransactionContribution, rec.Transaction.Type)
	assert.Equal(t, "/transactions/42", rec.Effect.URL)

	assert.ErrorIs(t, svc.RecordTransaction(ctx, models.Transaction{UserID: "42", Amount: 0, Date: "2024-03-10"}), common.ErrInvalidAmount)
	assert.ErrorIs(t, svc.RecordTransaction(ctx, models.Transaction{UserID: "42", Amount: 5}), common.ErrInvalidDate)
}

func TestSaveUser(t *testing.T) {
	d := &recordingDispatcher{}
	svc := NewRegistryService(&fakeClient{}, d)
	ctx := context.Background()

	require.NoError(t, svc.SaveUser(ctx, models.User{ID: "7", FirstName: "Rui"}))
	save := d.last(t).(offline.SaveUser)
	assert.Equal(t, http.MethodPut, save.Effect.Method)
	assert.Equal(t, "/users/7", save.Effect.URL)

	require.NoError(t, svc.SaveUser(ctx, models.User{FirstName: "New"}))
	save = d.last(t).(offline.SaveUser)
	assert.Equal(t, http.MethodPost, save.Effect.Method)
	assert.Equal(t, "/users", save.Effect.URL)
}

func TestExportAttendance(t *testing.T) {
	d := &recordingDispatcher{}
	svc := NewRegistryService(&fakeClient{}, d)
	ctx := context.Background()

	require.NoError(t, svc.ExportAttendance(ctx, "2024-01-01", "2024-03-31"))
	exp := d.last(t).(offline.ExportReport)
	assert.Equal(t, "/reports/attendance?from=2024-01-01&to=2024-03-31", exp.Effect.URL)
	assert.Equal(t, offline.ResponseBlob, exp.Effect.ResponseType)
	assert.Nil(t, exp.Effect.Body)

	require.NoError(t, svc.ExportAttendance(ctx, "", ""))
	assert.Equal(t, "/reports/attendance", d.last(t).(offline.ExportReport).Effect.URL)

	assert.ErrorIs(t, svc.ExportAttendance(ctx, "2024-13-01", ""), common.ErrInvalidDate)
}
