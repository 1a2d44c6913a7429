package services

import (
	"context"
	"errors"
	"strings"

	"github.com/tradeguard/escrow/internal/domain"
	"github.com/tradeguard/escrow/internal/ports"
)

// UserService handles registration and profile access.
type UserService struct {
	store  ports.Store
	clock  ports.Clock
	tokens TokenIssuer
}

// TokenIssuer mints an access token for an authenticated user.
type TokenIssuer interface {
	Issue(userID string, role domain.Role) (string, error)
}

func NewUserService(store ports.Store, clock ports.Clock, tokens TokenIssuer) *UserService {
	return &UserService{store: store, clock: clock, tokens: tokens}
}

// Register creates the user on first contact or completes the profile of an
// existing unregistered one, then issues an access token. Registration is
// idempotent on username.
func (s *UserService) Register(ctx context.Context, username, name, phone string) (*domain.User, string, error) {
	username = strings.TrimSpace(strings.ToLower(username))
	if username == "" {
		return nil, "", domain.NewValidationError("username is required")
	}

	var out *domain.User
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		u, err := st.Users().FindByUsername(ctx, username)
		switch {
		case err == nil:
			if u.Blocked {
				return domain.NewUserBlockedError(u.ID)
			}
		case domain.IsErrorCode(err, domain.ErrCodeNotFound):
			u = domain.NewUser(username, s.clock.Now())
			if err := st.Users().Create(ctx, u); err != nil {
				return err
			}
		default:
			return err
		}

		if name != "" || phone != "" {
			u.CompleteRegistration(name, phone, s.clock.Now())
			if result := u.Validate(); !result.IsValid {
				return domain.NewValidationError(result.Errors...)
			}
			if err := st.Users().Update(ctx, u); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(out.ID, out.Role)
	if err != nil {
		return nil, "", errors.New("failed to issue access token: " + err.Error())
	}
	return out, token, nil
}

// Get returns a user's own profile, or any profile for admins.
func (s *UserService) Get(ctx context.Context, actorID, userID string) (*domain.User, error) {
	actor, err := loadActor(ctx, s.store.Users(), actorID)
	if err != nil {
		return nil, err
	}
	if actor.ID == userID {
		return actor, nil
	}
	if !actor.IsAdmin() {
		return nil, domain.NewUnauthorizedError("view another user's profile")
	}
	return s.store.Users().FindByID(ctx, userID)
}

// List returns a page of users, admin only.
func (s *UserService) List(ctx context.Context, adminID string, limit, offset int) ([]*domain.User, error) {
	if _, err := requireAdmin(ctx, s.store.Users(), adminID, "list users"); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Users().List(ctx, limit, offset)
}

// Rate lets a participant of a completed transaction rate their counterparty.
func (s *UserService) Rate(ctx context.Context, txID, actorID string, rating float64) (*domain.User, error) {
	if rating < 1 || rating > 5 {
		return nil, domain.NewValidationError("rating must be between 1 and 5")
	}
	if _, err := loadActor(ctx, s.store.Users(), actorID); err != nil {
		return nil, err
	}

	var out *domain.User
	err := s.store.WithTx(ctx, func(st ports.Store) error {
		tx, err := st.Transactions().FindByID(ctx, txID)
		if err != nil {
			return err
		}
		if tx.State != domain.StateCompleted {
			return domain.NewInvalidStateError(tx.State, domain.StateCompleted)
		}
		var counterpartyID string
		switch actorID {
		case tx.SellerID:
			counterpartyID = tx.BuyerID
		case tx.BuyerID:
			counterpartyID = tx.SellerID
		default:
			return domain.NewUnauthorizedError("rate this transaction")
		}

		u, err := st.Users().FindByIDForUpdate(ctx, counterpartyID)
		if err != nil {
			return err
		}
		u.AddRating(rating, s.clock.Now())
		out = u
		return st.Users().Update(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
