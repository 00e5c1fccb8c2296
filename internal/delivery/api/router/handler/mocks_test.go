package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hotspot/config"
	"hotspot/internal/delivery/api"
	apimiddleware "hotspot/internal/delivery/api/middleware"
	"hotspot/internal/delivery/api/router"
	"hotspot/internal/delivery/api/router/handler"
	"hotspot/internal/domain/entity"
	"hotspot/internal/domain/service"
	"hotspot/internal/usecase"
	"hotspot/internal/window"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
)

const testToken = "valid-token"

type stubVerifier struct {
	userID uuid.UUID
}

func (v stubVerifier) VerifyAccessToken(tokenString string) (*service.Claims, error) {
	if tokenString != testToken {
		return nil, errors.New("bad token")
	}

	return &service.Claims{UserID: v.userID}, nil
}

type mockPresenceUC struct{ mock.Mock }

func (m *mockPresenceUC) CheckIn(ctx context.Context, userID, placeID uuid.UUID) (*entity.CheckIn, error) {
	args := m.Called(ctx, userID, placeID)
	checkIn, _ := args.Get(0).(*entity.CheckIn)

	return checkIn, args.Error(1)
}

func (m *mockPresenceUC) CheckOut(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockPresenceUC) SetGoingIntention(ctx context.Context, userID, placeID uuid.UUID) (*entity.GoingIntention, error) {
	args := m.Called(ctx, userID, placeID)
	intention, _ := args.Get(0).(*entity.GoingIntention)

	return intention, args.Error(1)
}

func (m *mockPresenceUC) ClearGoingIntention(ctx context.Context, userID, placeID uuid.UUID) error {
	return m.Called(ctx, userID, placeID).Error(0)
}

type mockRankUC struct{ mock.Mock }

func (m *mockRankUC) RankOf(ctx context.Context, userID, placeID uuid.UUID, kind entity.Kind) (int, error) {
	args := m.Called(ctx, userID, placeID, kind)

	return args.Int(0), args.Error(1)
}

type mockLivePostUC struct{ mock.Mock }

func (m *mockLivePostUC) CreateLivePost(ctx context.Context, userID, placeID uuid.UUID, content string) (*entity.LivePost, error) {
	args := m.Called(ctx, userID, placeID, content)
	post, _ := args.Get(0).(*entity.LivePost)

	return post, args.Error(1)
}

func (m *mockLivePostUC) UpdateLivePost(ctx context.Context, userID, postID uuid.UUID, content string) (*entity.LivePost, error) {
	args := m.Called(ctx, userID, postID, content)
	post, _ := args.Get(0).(*entity.LivePost)

	return post, args.Error(1)
}

func (m *mockLivePostUC) DeleteLivePost(ctx context.Context, userID, postID uuid.UUID) error {
	return m.Called(ctx, userID, postID).Error(0)
}

func (m *mockLivePostUC) ActiveLivePosts(ctx context.Context, placeID uuid.UUID) ([]*entity.LivePost, error) {
	args := m.Called(ctx, placeID)
	posts, _ := args.Get(0).([]*entity.LivePost)

	return posts, args.Error(1)
}

func (m *mockLivePostUC) WatchLivePosts(placeID uuid.UUID) (<-chan window.Update, func()) {
	args := m.Called(placeID)

	return args.Get(0).(chan window.Update), func() {}
}

type mockPromotionUC struct{ mock.Mock }

func (m *mockPromotionUC) ClaimPromotion(ctx context.Context, userID, promotionID uuid.UUID) (*usecase.ClaimResult, error) {
	args := m.Called(ctx, userID, promotionID)
	result, _ := args.Get(0).(*usecase.ClaimResult)

	return result, args.Error(1)
}

func (m *mockPromotionUC) CurrentClaims(ctx context.Context, userID uuid.UUID) ([]*entity.PromotionClaim, error) {
	args := m.Called(ctx, userID)
	claims, _ := args.Get(0).([]*entity.PromotionClaim)

	return claims, args.Error(1)
}

func (m *mockPromotionUC) ClaimState(promotionID, userID uuid.UUID) entity.ClaimState {
	return m.Called(promotionID, userID).Get(0).(entity.ClaimState)
}

func (m *mockPromotionUC) PromotionStats(ctx context.Context, userID, promotionID uuid.UUID) (*entity.PromotionStats, error) {
	args := m.Called(ctx, userID, promotionID)
	stats, _ := args.Get(0).(*entity.PromotionStats)

	return stats, args.Error(1)
}

type mockChatUC struct{ mock.Mock }

func (m *mockChatUC) ListMatches(ctx context.Context, userID uuid.UUID) ([]*entity.Match, error) {
	args := m.Called(ctx, userID)
	matches, _ := args.Get(0).([]*entity.Match)

	return matches, args.Error(1)
}

func (m *mockChatUC) Messages(ctx context.Context, userID, matchID uuid.UUID) ([]*entity.Message, error) {
	args := m.Called(ctx, userID, matchID)
	messages, _ := args.Get(0).([]*entity.Message)

	return messages, args.Error(1)
}

func (m *mockChatUC) SendMessage(ctx context.Context, userID, matchID uuid.UUID, content string) (*entity.Message, error) {
	args := m.Called(ctx, userID, matchID, content)
	message, _ := args.Get(0).(*entity.Message)

	return message, args.Error(1)
}

func (m *mockChatUC) NotifyInsert(ctx context.Context, event *service.ChangeEvent) {
	m.Called(ctx, event)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishChange(ctx context.Context, event *service.ChangeEvent) error {
	return m.Called(ctx, event).Error(0)
}

// testServer is the full echo stack with mocked use cases behind it.
type testServer struct {
	echo      *echo.Echo
	userID    uuid.UUID
	presence  *mockPresenceUC
	rank      *mockRankUC
	livePosts *mockLivePostUC
	promotion *mockPromotionUC
	chat      *mockChatUC
	publisher *mockPublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.HTTP.MaxRequestBodySize = "100KB"
	logger := slog.New(slog.DiscardHandler)

	ts := &testServer{
		userID:    uuid.New(),
		presence:  &mockPresenceUC{},
		rank:      &mockRankUC{},
		livePosts: &mockLivePostUC{},
		promotion: &mockPromotionUC{},
		chat:      &mockChatUC{},
		publisher: &mockPublisher{},
	}

	ts.echo = api.NewEcho(cfg, logger)
	router.NewRouter(router.RouterParams{
		PresenceHandler:  handler.NewPresenceHandler(handler.PresenceHandlerParams{PresenceUC: ts.presence, RankUC: ts.rank, Logger: logger}),
		LivePostHandler:  handler.NewLivePostHandler(handler.LivePostHandlerParams{LivePostUC: ts.livePosts, Logger: logger}),
		PromotionHandler: handler.NewPromotionHandler(handler.PromotionHandlerParams{PromotionUC: ts.promotion, Logger: logger}),
		ChatHandler:      handler.NewChatHandler(handler.ChatHandlerParams{ChatUC: ts.chat, Logger: logger}),
		PushHandler:      handler.NewPushHandler(handler.PushHandlerParams{Config: cfg, Logger: logger, Publisher: ts.publisher}),
		AuthMiddleware:   apimiddleware.NewAuthMiddleware(stubVerifier{userID: ts.userID}),
	}).RegisterRoutes(ts.echo)

	t.Cleanup(func() {
		ts.presence.AssertExpectations(t)
		ts.rank.AssertExpectations(t)
		ts.livePosts.AssertExpectations(t)
		ts.promotion.AssertExpectations(t)
		ts.chat.AssertExpectations(t)
		ts.publisher.AssertExpectations(t)
	})

	return ts
}

// do sends an authenticated request unless token is empty.
func (ts *testServer) do(method, target, body, token string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)

	return rec
}

func (ts *testServer) requestWithHeader(method, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set(echo.HeaderAuthorization, authorization)
	}

	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)

	return rec
}
