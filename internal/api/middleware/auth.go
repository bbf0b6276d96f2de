// auth.go: JWT middleware для аутентификации запросов docflow.
// Токены выпускает внешний провайдер (GoTrue-совместимый).
// Подпись проверяется общим секретом (HS256) или ключами из JWKS провайдера.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/docflow/internal/api/errors"
)

// contextKey: тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyIdentity: аутентифицированный пользователь в контексте запроса.
	ContextKeyIdentity contextKey = "identity"
)

// ErrMissingSubject: в токене нет sub.
var ErrMissingSubject = errors.New("отсутствует sub в токене")

// Identity: аутентифицированный пользователь.
type Identity struct {
	// UserID: sub из JWT
	UserID string
	Email  string
	// Role: роль провайдера (authenticated, service_role, ...)
	Role string
}

// IdentityVerifier проверяет bearer token и возвращает пользователя.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// providerClaims: claims токена провайдера.
type providerClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// JWTVerifier: проверка JWT провайдера.
type JWTVerifier struct {
	keyfunc  func(ctx context.Context) jwt.Keyfunc
	methods  []string
	issuer   string
	audience string
	leeway   time.Duration
}

// NewHMACVerifier создаёт проверку HS256-токенов общим секретом провайдера.
func NewHMACVerifier(secret, issuer, audience string, leeway time.Duration) *JWTVerifier {
	key := []byte(secret)
	return &JWTVerifier{
		keyfunc: func(context.Context) jwt.Keyfunc {
			return func(*jwt.Token) (any, error) { return key, nil }
		},
		methods:  []string{"HS256"},
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
	}
}

// NewJWKSVerifier создаёт проверку асимметричных токенов по JWKS провайдера.
// Ключи обновляются в фоне с интервалом refreshInterval.
func NewJWKSVerifier(
	jwksURL string,
	issuer string,
	audience string,
	clientTimeout time.Duration,
	refreshInterval time.Duration,
	leeway time.Duration,
	logger *slog.Logger,
) (*JWTVerifier, error) {
	// NoErrorReturnFirstHTTPReq: стартуем даже если провайдер ещё недоступен.
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: clientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("Ошибка обновления JWKS",
				slog.String("error", err.Error()),
				slog.String("url", jwksURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("создание JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{
		Storage: storage,
	})
	if err != nil {
		return nil, fmt.Errorf("создание keyfunc: %w", err)
	}

	return NewJWTVerifierWithKeyfunc(k, issuer, audience, leeway), nil
}

// NewJWTVerifierWithKeyfunc создаёт проверку с предоставленной keyfunc.
// Используется в тестах для подстановки mock JWKS.
func NewJWTVerifierWithKeyfunc(kf keyfunc.Keyfunc, issuer, audience string, leeway time.Duration) *JWTVerifier {
	return &JWTVerifier{
		keyfunc:  kf.KeyfuncCtx,
		methods:  []string{"RS256", "ES256"},
		issuer:   issuer,
		audience: audience,
		leeway:   leeway,
	}
}

// Verify проверяет подпись, срок действия, issuer и audience токена.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &providerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc(ctx), opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, ErrMissingSubject
	}

	return &Identity{
		UserID: subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

// Auth: middleware аутентификации.
type Auth struct {
	verifier IdentityVerifier
	logger   *slog.Logger
}

// NewAuth создаёт middleware аутентификации.
func NewAuth(verifier IdentityVerifier, logger *slog.Logger) *Auth {
	return &Auth{
		verifier: verifier,
		logger:   logger.With(slog.String("component", "auth")),
	}
}

// Middleware возвращает HTTP middleware: извлекает Bearer token,
// проверяет его и помещает Identity в контекст.
func (a *Auth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apierrors.Unauthorized(w, "Отсутствует заголовок Authorization")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				apierrors.Unauthorized(w, "Неверный формат Authorization: ожидается Bearer <token>")
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				apierrors.Unauthorized(w, "Пустой Bearer token")
				return
			}

			identity, err := a.verifier.Verify(r.Context(), tokenString)
			if err != nil {
				a.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// --- Context helpers ---

// WithIdentity помещает Identity в контекст.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, identity)
}

// IdentityFromContext извлекает Identity из контекста запроса.
// Возвращает nil, если пользователь не аутентифицирован.
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*Identity)
	return identity
}

// --- ReadinessChecker для провайдера аутентификации ---

const (
	statusOK   = "ok"
	statusFail = "fail"
)

// AuthProviderReadinessChecker: проверка доступности провайдера аутентификации.
type AuthProviderReadinessChecker struct {
	healthURL string
	client    *http.Client
}

// NewAuthProviderReadinessChecker создаёт checker доступности провайдера.
// healthURL: полный URL health endpoint провайдера.
func NewAuthProviderReadinessChecker(healthURL string, timeout time.Duration) *AuthProviderReadinessChecker {
	return &AuthProviderReadinessChecker{
		healthURL: healthURL,
		client:    &http.Client{Timeout: timeout},
	}
}

// CheckReady проверяет, что health endpoint провайдера отвечает 200.
func (c *AuthProviderReadinessChecker) CheckReady() (status, message string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, c.healthURL, http.NoBody)
	if err != nil {
		return statusFail, "ошибка создания запроса: " + err.Error()
	}
	resp, err := c.client.Do(req) //nolint:gosec // URL из конфигурации
	if err != nil {
		return statusFail, fmt.Sprintf("провайдер аутентификации недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusFail, fmt.Sprintf("провайдер аутентификации вернул статус %d", resp.StatusCode)
	}
	return statusOK, "провайдер аутентификации доступен"
}
