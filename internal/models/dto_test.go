package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestPlanID_AcceptsStringAndNumber(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"email":"a@x.com","plan_id":"1"}`, "1"},
		{`{"email":"a@x.com","plan_id":7}`, "7"},
	}

	for _, tt := range tests {
		var req CreateVPSRequest
		if err := json.Unmarshal([]byte(tt.body), &req); err != nil {
			t.Fatalf("Unmarshal(%s) returned error: %v", tt.body, err)
		}
		if req.PlanID.String() != tt.want {
			t.Errorf("Expected plan id %q, got %q", tt.want, req.PlanID)
		}
	}
}

func TestPlanID_RejectsNonInteger(t *testing.T) {
	for _, body := range []string{
		`{"plan_id": 1.5}`,
		`{"plan_id": true}`,
		`{"plan_id": ["1"]}`,
	} {
		var req CreateVPSRequest
		if err := json.Unmarshal([]byte(body), &req); err == nil {
			t.Errorf("Expected error for %s, got plan id %q", body, req.PlanID)
		}
	}
}

func TestVpsRecord_SerializesAbsentFieldsAsNull(t *testing.T) {
	record := VpsRecord{ID: "abc", Email: "a@x.com"}

	out, err := json.Marshal(&record)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	for _, fragment := range []string{
		`"ip_address":null`,
		`"password":null`,
		`"create_date":null`,
		`"delete_date":null`,
	} {
		if !strings.Contains(string(out), fragment) {
			t.Errorf("Expected %s in %s", fragment, out)
		}
	}
}

func TestVpsRecord_TimestampsKeepFixedOffset(t *testing.T) {
	now := Now()

	if _, offset := now.Zone(); offset != -5*60*60 {
		t.Fatalf("Expected UTC-5 offset, got %d", offset)
	}

	record := VpsRecord{ID: "abc", Email: "a@x.com", CreateDate: &now}
	out, err := json.Marshal(&record)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if !strings.Contains(string(out), "-05:00") {
		t.Errorf("Expected RFC 3339 timestamp with -05:00 offset in %s", out)
	}
}

func TestVpsRecord_Localize(t *testing.T) {
	utc := time.Date(2025, 3, 10, 3, 0, 0, 0, time.UTC)
	record := VpsRecord{CreateDate: &utc}

	record.Localize()

	if _, offset := record.CreateDate.Zone(); offset != -5*60*60 {
		t.Errorf("Expected UTC-5 offset after Localize, got %d", offset)
	}
	if !record.CreateDate.Equal(utc) {
		t.Error("Localize must not change the instant")
	}

	// Nil receiver and nil fields are tolerated.
	var nilRecord *VpsRecord
	nilRecord.Localize()
	(&VpsRecord{}).Localize()
}
