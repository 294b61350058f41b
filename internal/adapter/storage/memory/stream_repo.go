package memory

import (
	"context"
	"fmt"
	"sort"

	"stream-ledger/internal/core/domain"
	"stream-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// StreamRepo implements ports.StreamRepository over a Store.
type StreamRepo struct {
	store *Store
}

// NewStreamRepo creates a new StreamRepo.
func NewStreamRepo(store *Store) *StreamRepo {
	return &StreamRepo{store: store}
}

func streamKey(id domain.StreamID) string {
	return fmt.Sprintf("stream:%d", id)
}

// Create takes the sequence lock, so IDs are gapless and creates serialize
// until commit.
func (r *StreamRepo) Create(ctx context.Context, tx pgx.Tx, st *domain.Stream) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := mtx.lock(ctx, seqLockKey); err != nil {
		return err
	}

	r.store.mu.Lock()
	next := domain.StreamID(len(r.store.streams) + len(mtx.newStreams))
	if st.IdempotencyKey != nil {
		if _, dup := r.store.idempotency[idempotencyIndex(st.Employer, *st.IdempotencyKey)]; dup {
			r.store.mu.Unlock()
			return ports.ErrIdempotencyConflict
		}
	}
	r.store.mu.Unlock()

	for _, id := range mtx.newStreams {
		staged := mtx.streams[id]
		if st.IdempotencyKey != nil && staged.IdempotencyKey != nil &&
			staged.Employer == st.Employer && *staged.IdempotencyKey == *st.IdempotencyKey {
			return ports.ErrIdempotencyConflict
		}
	}

	if err := mtx.lock(ctx, streamKey(next)); err != nil {
		return err
	}
	st.ID = next
	mtx.streams[next] = st.Clone()
	mtx.newStreams = append(mtx.newStreams, next)
	return nil
}

// GetByID returns the committed stream, or nil, nil if not found.
func (r *StreamRepo) GetByID(_ context.Context, id domain.StreamID) (*domain.Stream, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if uint64(id) >= uint64(len(r.store.streams)) {
		return nil, nil
	}
	return r.store.streams[id].Clone(), nil
}

// GetByIDForUpdate locks the stream for the rest of tx. Unknown ids return
// nil, nil without taking a lock; streams are never deleted, so a committed
// id stays valid.
func (r *StreamRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id domain.StreamID) (*domain.Stream, error) {
	mtx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if _, staged := mtx.streams[id]; !staged {
		r.store.mu.Lock()
		committed := uint64(len(r.store.streams))
		r.store.mu.Unlock()
		if uint64(id) >= committed {
			return nil, nil
		}
	}
	if err := mtx.lock(ctx, streamKey(id)); err != nil {
		return nil, err
	}
	if st, ok := mtx.streams[id]; ok {
		return st.Clone(), nil
	}
	return r.GetByID(ctx, id)
}

// GetByIdempotencyKey returns nil, nil if the employer never used key.
func (r *StreamRepo) GetByIdempotencyKey(_ context.Context, employer domain.Address, key string) (*domain.Stream, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	id, ok := r.store.idempotency[idempotencyIndex(employer, key)]
	if !ok {
		return nil, nil
	}
	return r.store.streams[id].Clone(), nil
}

// Update stages st. The row must already be locked by tx.
func (r *StreamRepo) Update(_ context.Context, tx pgx.Tx, st *domain.Stream) error {
	mtx, err := asTx(tx)
	if err != nil {
		return err
	}
	if !mtx.holds(streamKey(st.ID)) {
		return errNotLocked
	}
	mtx.streams[st.ID] = st.Clone()
	return nil
}

// List returns the party's streams, newest first.
func (r *StreamRepo) List(_ context.Context, params ports.StreamListParams) ([]domain.Stream, int64, error) {
	r.store.mu.Lock()
	var matched []domain.Stream
	for _, st := range r.store.streams {
		if matchesParty(st, params.Party, params.Role) {
			matched = append(matched, *st.Clone())
		}
	}
	r.store.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	total := int64(len(matched))
	offset := (params.Page - 1) * params.PageSize
	if offset >= len(matched) {
		return []domain.Stream{}, total, nil
	}
	end := offset + params.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func matchesParty(st *domain.Stream, party domain.Address, role *domain.Role) bool {
	if role == nil {
		return st.Employer == party || st.Worker == party
	}
	switch *role {
	case domain.RoleEmployer:
		return st.Employer == party
	case domain.RoleWorker:
		return st.Worker == party
	}
	return false
}
