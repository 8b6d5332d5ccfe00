package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/tradecopia/vps-service/internal/client"
	"github.com/tradecopia/vps-service/internal/config"
	"github.com/tradecopia/vps-service/internal/credentials"
	"github.com/tradecopia/vps-service/internal/models"
	"github.com/tradecopia/vps-service/internal/repository"
)

// UpstreamClient is the slice of the Virtualizor client the workflow needs.
type UpstreamClient interface {
	AddUser(ctx context.Context, email, password string) (json.RawMessage, error)
	LookupUserID(ctx context.Context, email string) (string, error)
	CreateServer(ctx context.Context, p client.CreateServerParams) (string, error)
	LookupServerID(ctx context.Context, email string) (string, error)
	DeleteServer(ctx context.Context, serverID string) (bool, error)
	DeleteUser(ctx context.Context, userID string) (bool, error)
}

// RecordStore journals provisioning outcomes per customer email.
type RecordStore interface {
	SaveCreation(ctx context.Context, email, ipAddress, password, planID string) (*models.VpsRecord, error)
	MarkDeleted(ctx context.Context, email string) (*models.VpsRecord, error)
	List(ctx context.Context, q repository.ListQuery) (*repository.ListResult, error)
}

// ProvisionService orchestrates server creation and teardown against the
// panel and keeps the record store in sync. Each call is independent; the
// only cross-request state is the per-email lock table.
type ProvisionService struct {
	cfg     *config.Config
	virt    UpstreamClient
	records RecordStore
	locks   emailLocks
}

func NewProvisionService(cfg *config.Config, virt UpstreamClient, records RecordStore) *ProvisionService {
	return &ProvisionService{
		cfg:     cfg,
		virt:    virt,
		records: records,
	}
}

// CreateVPS provisions a server for a customer: sign the user up on the
// tenant panel, resolve their numeric uid, create a KVM server under it,
// then journal the credentials. Any failure is terminal for the request;
// there are no retries.
func (s *ProvisionService) CreateVPS(ctx context.Context, email string, planID string) (*models.CreateVPSResponse, error) {
	unlock := s.locks.lock(email)
	defer unlock()

	log.Printf("[Provision] Creating server for email=%s plan=%s", email, planID)

	signupPassword, err := credentials.StrongPassword(credentials.DefaultPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generate signup password: %w", err)
	}

	// The panel tolerates re-signup of an existing email, so this is safe on
	// re-provisioning; the uid lookup below is the authoritative check.
	if _, err := s.virt.AddUser(ctx, email, signupPassword); err != nil {
		return nil, fmt.Errorf("add panel user: %w", err)
	}

	userID, err := s.virt.LookupUserID(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolve uid: %w", err)
	}

	hostname, err := credentials.RandomHostname(credentials.DefaultHostnameLength)
	if err != nil {
		return nil, fmt.Errorf("generate hostname: %w", err)
	}
	rootPassword, err := credentials.StrongPassword(credentials.DefaultPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generate root password: %w", err)
	}

	ipAddress, err := s.virt.CreateServer(ctx, client.CreateServerParams{
		UserID:       userID,
		PlanID:       planID,
		Hostname:     hostname,
		RootPassword: rootPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	record, err := s.records.SaveCreation(ctx, email, ipAddress, rootPassword, planID)
	if err != nil {
		// The server exists upstream at this point; surface the store
		// failure rather than pretending the provisioning did not happen.
		return nil, fmt.Errorf("server %s created but record save failed: %w", ipAddress, err)
	}

	log.Printf("[Provision] Server ready for email=%s ip=%s", email, ipAddress)

	return &models.CreateVPSResponse{
		IPAddress: ipAddress,
		Password:  rootPassword,
		Record:    record,
	}, nil
}

// DeleteVPS tears down a customer's server and panel user. Both deletions
// must be confirmed by the panel; a rejected server deletion stops the
// sequence before the user is touched and before the record is marked.
func (s *ProvisionService) DeleteVPS(ctx context.Context, email string) (*models.DeleteVPSResponse, error) {
	unlock := s.locks.lock(email)
	defer unlock()

	log.Printf("[Provision] Deleting server for email=%s", email)

	serverID, err := s.virt.LookupServerID(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolve server id: %w", err)
	}

	done, err := s.virt.DeleteServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("delete server: %w", err)
	}
	if !done {
		return nil, fmt.Errorf("delete server %s: %w", serverID, client.ErrRejected)
	}

	userID, err := s.virt.LookupUserID(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolve uid: %w", err)
	}

	done, err = s.virt.DeleteUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	if !done {
		return nil, fmt.Errorf("delete user %s: %w", userID, client.ErrRejected)
	}

	record, err := s.records.MarkDeleted(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("mark record deleted: %w", err)
	}

	log.Printf("[Provision] Server %s deleted for email=%s", serverID, email)

	return &models.DeleteVPSResponse{
		VpsDeleted:  serverID,
		UserDeleted: email,
		Record:      record,
	}, nil
}

// ListRecords serves the dashboard listing.
func (s *ProvisionService) ListRecords(ctx context.Context, period, search string, limit int64) (*models.RecordsResponse, error) {
	result, err := s.records.List(ctx, repository.ListQuery{
		Period: period,
		Search: search,
		Limit:  limit,
	})
	if err != nil {
		return nil, err
	}

	if period == "" {
		period = "today"
	}

	return &models.RecordsResponse{
		Period:      period,
		PeriodStart: result.PeriodStart,
		PeriodEnd:   result.PeriodEnd,
		Summary:     result.Summary,
		Records:     result.Records,
	}, nil
}

// emailLocks serializes mutations per customer email so two concurrent
// requests for the same customer cannot interleave their panel calls and
// record writes. Entries are never evicted; the table is bounded by the
// number of distinct customers seen by this process.
type emailLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *emailLocks) lock(email string) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	m, ok := l.locks[email]
	if !ok {
		m = &sync.Mutex{}
		l.locks[email] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
