package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/spherre/multisig-service/internal/config"
	"github.com/spherre/multisig-service/internal/utils"
)

// SignInResult carries the tokens issued for a signed-in member
type SignInResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Member       string `json:"member"`
}

// AuthService signs members in by wallet address and issues JWTs. Wallet
// signature verification happens on the client/contract side and is out of
// scope here; the service only validates the address shape and issues tokens.
type AuthService struct {
	accounts AccountRepository
	config   *config.Config
	log      *logrus.Logger
}

// NewAuthService initializes a new auth service
func NewAuthService(accounts AccountRepository, cfg *config.Config, log *logrus.Logger) *AuthService {
	return &AuthService{accounts: accounts, config: cfg, log: log}
}

// SignIn signs a member in, creating the member record on first sign-in, and
// returns an access and a refresh token
func (s *AuthService) SignIn(ctx context.Context, address string) (*SignInResult, error) {
	if !utils.IsValidStarknetAddress(address) {
		return nil, fmt.Errorf("%w: invalid member address", ErrInvalidArgument)
	}
	member, err := s.accounts.GetOrCreateMember(ctx, address)
	if err != nil {
		return nil, err
	}

	token, err := s.issueToken(member.Address, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	refresh, err := s.issueToken(member.Address, 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	s.log.Infof("Member signed in: %s", member.Address)
	return &SignInResult{Token: token, RefreshToken: refresh, Member: member.Address}, nil
}

func (s *AuthService) issueToken(address string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   address,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	})
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return signed, nil
}
