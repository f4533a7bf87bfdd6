package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"agrimarket/internal/config"
	"agrimarket/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey       = "user_id"       // int64
	CtxUserRoleKey     = "user_role"     // model.Role
	CtxTokenVersionKey = "token_version" // int
)

var errBadClaims = errors.New("invalid access token claims")

// 認証サービスが発行したアクセストークンの中身
type accessClaims struct {
	UserID       int64
	Role         model.Role
	TokenVersion int
}

// HS256以外・期限切れ・未知のロールはすべてエラー
func parseAccessToken(raw string, secret []byte) (accessClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return accessClaims{}, err
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return accessClaims{}, errBadClaims
	}

	userID, err := parseUserID(mc["sub"])
	if err != nil || userID <= 0 {
		return accessClaims{}, errBadClaims
	}
	rawRole, ok := mc["role"].(string)
	if !ok {
		return accessClaims{}, errBadClaims
	}
	role, err := model.ParseRole(rawRole)
	if err != nil {
		return accessClaims{}, err
	}
	tv, err := parseInt(mc["tv"])
	if err != nil || tv < 0 {
		return accessClaims{}, errBadClaims
	}

	return accessClaims{UserID: userID, Role: role, TokenVersion: tv}, nil
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthJWT は Authorization: Bearer のトークンを検証して
// user_id / role / token_version を context に入れる。
func AuthJWT(cfg config.Config) echo.MiddlewareFunc {
	secret := []byte(cfg.JWTSecret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			claims, err := parseAccessToken(raw, secret)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}

			c.Set(CtxUserIDKey, claims.UserID)
			c.Set(CtxUserRoleKey, claims.Role)
			c.Set(CtxTokenVersionKey, claims.TokenVersion)
			return next(c)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func errorJSON(msg string) errorResponse {
	return errorResponse{Error: msg}
}

// JSONの数値は float64 で来る
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	}
	return 0, errors.New("invalid sub")
}

func parseInt(v interface{}) (int, error) {
	switch t := v.(type) {
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.ParseInt(t, 10, 32)
		return int(n), err
	}
	return 0, errors.New("invalid int")
}
