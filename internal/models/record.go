package models

import "time"

// RecordTZ is the fixed civil offset all record timestamps are written in.
// The panel operators work in UTC-5 and the dashboard groups days and months
// by that offset, so it is deliberately not a location-based zone.
var RecordTZ = time.FixedZone("UTC-5", -5*60*60)

// Now returns the current time in the record timezone.
func Now() time.Time {
	return time.Now().In(RecordTZ)
}

// VpsRecord is the journal entry for one customer's most recent provisioning
// state. Email is the natural key; there is exactly one document per email.
// IPAddress and Password are both set while a server is active and both
// unset once it is torn down. Records are never removed, only marked deleted.
type VpsRecord struct {
	ID         string     `bson:"id" json:"id"`
	Email      string     `bson:"email" json:"email"`
	IPAddress  *string    `bson:"ip_address,omitempty" json:"ip_address"`
	Password   *string    `bson:"password,omitempty" json:"password"`
	PlanID     *string    `bson:"plan_id,omitempty" json:"plan_id"`
	CreateDate *time.Time `bson:"create_date" json:"create_date"`
	DeleteDate *time.Time `bson:"delete_date" json:"delete_date"`
}

// Localize rewrites the timestamps into the record timezone. Mongo hands
// times back in UTC; callers see the fixed offset the record was written in.
func (r *VpsRecord) Localize() {
	if r == nil {
		return
	}
	if r.CreateDate != nil {
		t := r.CreateDate.In(RecordTZ)
		r.CreateDate = &t
	}
	if r.DeleteDate != nil {
		t := r.DeleteDate.In(RecordTZ)
		r.DeleteDate = &t
	}
}
