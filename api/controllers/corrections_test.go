package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/duzelt/duzelt-backend/api/middleware"
	"github.com/duzelt/duzelt-backend/internal/correction"
	"github.com/duzelt/duzelt-backend/internal/entitlements"
	"github.com/duzelt/duzelt-backend/pkg/enums"
	pkgerrors "github.com/duzelt/duzelt-backend/pkg/errors"
	"github.com/duzelt/duzelt-backend/pkg/logger"
)

type stubGuard struct {
	allowance entitlements.Allowance
	checkErr  error
	recorded  int
}

func (s *stubGuard) Check(_ context.Context, _, _ string, _ time.Time) (entitlements.Allowance, error) {
	return s.allowance, s.checkErr
}

func (s *stubGuard) Record(_ context.Context, _ string, _ time.Time) (int64, error) {
	s.recorded++
	return s.allowance.Used + 1, nil
}

type stubRunner struct {
	result correction.Result
	err    error
	inputs []correction.Input
}

func (s *stubRunner) Correct(_ context.Context, in correction.Input) (correction.Result, error) {
	s.inputs = append(s.inputs, in)
	return s.result, s.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func correctionRequestWithUser(t *testing.T, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections", strings.NewReader(body))
	ctx := middleware.WithUserID(req.Context(), "user-1")
	ctx = middleware.WithEmail(ctx, "aysel@example.com")
	return req.WithContext(ctx)
}

func TestCorrectionsHappyPath(t *testing.T) {
	guard := &stubGuard{allowance: entitlements.Allowance{Plan: enums.PlanFree, Period: "2026-08", Used: 10, Limit: 50}}
	runner := &stubRunner{result: correction.Result{
		Text:       "Salam, mən sizə yazıram.",
		Task:       enums.CorrectionTaskFix,
		Vibe:       enums.VibeProfessional,
		PassesUsed: 1,
	}}
	handler := Corrections(guard, runner, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, correctionRequestWithUser(t, `{"text":"salam men size yaziram"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if guard.recorded != 1 {
		t.Fatalf("expected one usage record, got %d", guard.recorded)
	}

	var envelope struct {
		Data correctionResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Result != "Salam, mən sizə yazıram." || envelope.Data.CorrectedText != envelope.Data.Result {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
	if envelope.Data.Usage.Used != 11 || envelope.Data.Usage.Limit != 50 {
		t.Fatalf("unexpected usage %+v", envelope.Data.Usage)
	}
}

func TestCorrectionsAcceptsModeAlias(t *testing.T) {
	guard := &stubGuard{allowance: entitlements.Allowance{Plan: enums.PlanFree, Period: "2026-08", Limit: 50}}
	runner := &stubRunner{result: correction.Result{Text: "Yenidən yazılmış mətn.", Task: enums.CorrectionTaskRewrite, Vibe: enums.VibeCasual, PassesUsed: 1}}
	handler := Corrections(guard, runner, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, correctionRequestWithUser(t, `{"text":"salam","mode":"rewrite","vibe":"Casual"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(runner.inputs) != 1 || runner.inputs[0].Task != enums.CorrectionTaskRewrite {
		t.Fatalf("mode alias not honored: %+v", runner.inputs)
	}
	if runner.inputs[0].Vibe != enums.VibeCasual {
		t.Fatalf("vibe not passed through: %+v", runner.inputs[0])
	}
}

func TestCorrectionsTaskWinsOverMode(t *testing.T) {
	guard := &stubGuard{allowance: entitlements.Allowance{Limit: 50}}
	runner := &stubRunner{result: correction.Result{Text: "ok", Task: enums.CorrectionTaskFix, Vibe: enums.VibeProfessional, PassesUsed: 1}}
	handler := Corrections(guard, runner, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, correctionRequestWithUser(t, `{"text":"salam","task":"fix","mode":"rewrite"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if runner.inputs[0].Task != enums.CorrectionTaskFix {
		t.Fatalf("task field must take precedence, got %s", runner.inputs[0].Task)
	}
}

func TestCorrectionsQuotaExceededReturns402(t *testing.T) {
	guard := &stubGuard{
		checkErr: pkgerrors.New(pkgerrors.CodeQuotaExceeded, "monthly limit reached").
			WithDetails(map[string]any{"used": int64(50), "limit": int64(50)}),
	}
	runner := &stubRunner{}
	handler := Corrections(guard, runner, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, correctionRequestWithUser(t, `{"text":"salam"}`))

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(runner.inputs) != 0 {
		t.Fatal("pipeline must not run when quota is exhausted")
	}

	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Error.Code != "QUOTA_EXCEEDED" {
		t.Fatalf("unexpected code %q", envelope.Error.Code)
	}
	if envelope.Error.Details["used"] != float64(50) || envelope.Error.Details["limit"] != float64(50) {
		t.Fatalf("unexpected details %v", envelope.Error.Details)
	}
}

func TestCorrectionsPipelineFailureDoesNotRecordUsage(t *testing.T) {
	guard := &stubGuard{allowance: entitlements.Allowance{Limit: 50}}
	runner := &stubRunner{err: pkgerrors.New(pkgerrors.CodeDependency, "model offline")}
	handler := Corrections(guard, runner, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, correctionRequestWithUser(t, `{"text":"salam"}`))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if guard.recorded != 0 {
		t.Fatal("usage must not be recorded on failure")
	}
}

func TestCorrectionsValidatesBody(t *testing.T) {
	guard := &stubGuard{allowance: entitlements.Allowance{Limit: 50}}
	handler := Corrections(guard, &stubRunner{}, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, correctionRequestWithUser(t, `{"task":"fix"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without text, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, correctionRequestWithUser(t, `{"text":"salam","task":"translate"}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown task, got %d", rec.Code)
	}
}

func TestCorrectionsRequiresAuth(t *testing.T) {
	handler := Corrections(&stubGuard{}, &stubRunner{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/corrections", strings.NewReader(`{"text":"salam"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
