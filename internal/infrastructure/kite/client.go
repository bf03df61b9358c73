package kite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/devilmonastery/kitesession/internal/domain/entities"
	"github.com/devilmonastery/kitesession/internal/domain/repositories"
)

// DefaultTimeout bounds each Kite API call. The SDK takes no context, so this
// is the only way a stuck call ends.
const DefaultTimeout = 15 * time.Second

// Options configures the Kite Connect client
type Options struct {
	APIKey  string
	BaseURI string // empty: the SDK default
	Timeout time.Duration
	Debug   bool
}

// Client implements repositories.RemoteSessionClient on top of gokiteconnect
type Client struct {
	kc     *kiteconnect.Client
	logger *slog.Logger
}

// NewClient creates a client whose HTTP traffic is instrumented and watched
// for expired sessions.
func NewClient(opts Options, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "kite")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	kc := kiteconnect.New(opts.APIKey)
	kc.SetHTTPClient(&http.Client{
		Timeout:   timeout,
		Transport: NewMetricsTransport(nil, log),
	})
	if opts.BaseURI != "" {
		kc.SetBaseURI(opts.BaseURI)
	}
	kc.SetDebug(opts.Debug)

	return &Client{kc: kc, logger: log}
}

func (c *Client) LoginURL() string {
	return c.kc.GetLoginURL()
}

func (c *Client) SetAccessToken(token string) {
	c.kc.SetAccessToken(token)
}

func (c *Client) Profile(ctx context.Context) (*entities.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.kc.GetUserProfile()
	if err != nil {
		return nil, wrapError("get profile", err)
	}
	return toProfile(p), nil
}

func (c *Client) GenerateSession(ctx context.Context, requestToken, apiSecret string) (*entities.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := c.kc.GenerateSession(requestToken, apiSecret)
	if err != nil {
		return nil, wrapError("generate session", err)
	}
	return toUser(s), nil
}

func (c *Client) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := c.kc.InvalidateAccessToken()
	if err != nil {
		return wrapError("invalidate access token", err)
	}
	if !ok {
		return errors.New("invalidate access token: remote did not acknowledge")
	}
	return nil
}

func (c *Client) Holdings(ctx context.Context) ([]entities.Holding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hs, err := c.kc.GetHoldings()
	if err != nil {
		return nil, wrapError("get holdings", err)
	}
	out := make([]entities.Holding, 0, len(hs))
	for _, h := range hs {
		out = append(out, toHolding(h))
	}
	return out, nil
}

// wrapError maps SDK error types onto repository errors
func wrapError(op string, err error) error {
	var kerr kiteconnect.Error
	if errors.As(err, &kerr) {
		switch kerr.ErrorType {
		case kiteconnect.TokenError:
			return fmt.Errorf("%s: %w: %v", op, repositories.ErrSessionExpired, err)
		case kiteconnect.NetworkError:
			return fmt.Errorf("%s: %w: %v", op, repositories.ErrRemoteUnavailable, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toProfile(p kiteconnect.UserProfile) *entities.Profile {
	return &entities.Profile{
		UserID:     p.UserID,
		UserName:   p.UserName,
		ShortName:  p.UserShortName,
		UserType:   p.UserType,
		Email:      p.Email,
		Broker:     p.Broker,
		Exchanges:  p.Exchanges,
		OrderTypes: p.OrderTypes,
		Products:   p.Products,
	}
}

func toUser(s kiteconnect.UserSession) *entities.User {
	return &entities.User{
		UserID:       s.UserID,
		UserName:     s.UserName,
		ShortName:    s.UserShortName,
		UserType:     s.UserType,
		APIKey:       s.APIKey,
		AccessToken:  s.AccessToken,
		PublicToken:  s.PublicToken,
		RefreshToken: s.RefreshToken,
		LoginTime:    s.LoginTime.Time,
		OrderTypes:   s.OrderTypes,
		Products:     s.Products,
	}
}

func toHolding(h kiteconnect.Holding) entities.Holding {
	return entities.Holding{
		TradingSymbol:      h.Tradingsymbol,
		Exchange:           h.Exchange,
		InstrumentToken:    h.InstrumentToken,
		ISIN:               h.ISIN,
		Product:            h.Product,
		Quantity:           h.Quantity,
		T1Quantity:         h.T1Quantity,
		RealisedQuantity:   h.RealisedQuantity,
		CollateralQuantity: h.CollateralQuantity,
		CollateralType:     h.CollateralType,
		Price:              decimal.NewFromFloat(h.Price),
		AveragePrice:       decimal.NewFromFloat(h.AveragePrice),
		LastPrice:          decimal.NewFromFloat(h.LastPrice),
		PnL:                decimal.NewFromFloat(h.PnL),
	}
}
