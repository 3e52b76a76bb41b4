package executor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"assessment-engine/internal/domain"
	"assessment-engine/internal/grading"
)

func TestExecuteSendsCasesAndMapsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/execute" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Language != "go" || len(req.TestCases) != 2 || req.TestCases[1].ExpectedOutput != "5" {
			t.Errorf("unexpected payload %+v", req)
		}
		json.NewEncoder(w).Encode(executeResponse{
			Passed: false,
			Results: []caseResult{
				{CaseID: "t1", Output: "3", Passed: true, TimeMs: 4, MemoryKB: 512},
				{CaseID: "t2", Output: "4", Passed: false},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	res, err := c.Execute(context.Background(), grading.ExecutionRequest{
		Language: "go",
		Code:     "package main",
		TestCases: []domain.TestCase{
			{ID: "t1", Input: "1 2", Expected: "3"},
			{ID: "t2", Input: "2 3", Expected: "5"},
		},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Passed || len(res.Cases) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if !res.Cases[0].Passed || res.Cases[0].TimeMs != 4 || res.Cases[0].MemoryKB != 512 {
		t.Fatalf("case mapping wrong: %+v", res.Cases[0])
	}
}

func TestExecuteReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "sandbox down", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Execute(context.Background(), grading.ExecutionRequest{Language: "go"})
	if err == nil {
		t.Fatalf("expected error on 502")
	}
}
