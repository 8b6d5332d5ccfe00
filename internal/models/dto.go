package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// PlanID accepts either a JSON string or a JSON number; the admin panel's
// plan identifiers are numeric but clients historically sent both forms.
type PlanID string

func (p *PlanID) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("plan_id is empty")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = PlanID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("plan_id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("plan_id must be an integer: %w", err)
	}
	*p = PlanID(n.String())
	return nil
}

func (p PlanID) String() string {
	return string(p)
}

// CreateVPSRequest is the body of POST /create_vps.
type CreateVPSRequest struct {
	Email  string `json:"email"`
	PlanID PlanID `json:"plan_id"`
}

// DeleteVPSRequest is the body of POST /delete_vps.
type DeleteVPSRequest struct {
	Email string `json:"email"`
}

// CreateVPSResponse reports the newly provisioned server's credentials along
// with the persisted journal record.
type CreateVPSResponse struct {
	IPAddress string     `json:"ip_address"`
	Password  string     `json:"password"`
	Record    *VpsRecord `json:"record"`
}

// DeleteVPSResponse reports which server and user were removed upstream.
type DeleteVPSResponse struct {
	VpsDeleted  string     `json:"vps_deleted"`
	UserDeleted string     `json:"user_deleted"`
	Record      *VpsRecord `json:"record"`
}

// LoginRequest is the dashboard login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the dashboard session token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RecordsSummary counts records within the requested period.
type RecordsSummary struct {
	ActiveCount  int64 `json:"active_count"`
	CreatedCount int64 `json:"created_count"`
	DeletedCount int64 `json:"deleted_count"`
}

// RecordsResponse is the dashboard listing payload.
type RecordsResponse struct {
	Period      string         `json:"period"`
	PeriodStart *time.Time     `json:"period_start"`
	PeriodEnd   *time.Time     `json:"period_end"`
	Summary     RecordsSummary `json:"summary"`
	Records     []*VpsRecord   `json:"records"`
}
