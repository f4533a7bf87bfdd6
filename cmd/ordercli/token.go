package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"agrimarket/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/spf13/cobra"
)

// 開発用。本番のトークンは認証サービスが発行する
func tokenCommand() *cobra.Command {
	var (
		userID int64
		role   string
		tv     int
		ttl    time.Duration
		secret string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "issue a development access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			signed, err := issueToken(secret, userID, role, tv, time.Now(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}

	cmd.Flags().Int64Var(&userID, "user", 0, "user id (sub)")
	cmd.Flags().StringVar(&role, "role", string(model.RoleBuyer), "FARMER|BUYER|VENDOR|TRANSPORTER|ADMIN")
	cmd.Flags().IntVar(&tv, "tv", 0, "token version")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// AuthJWT が読む形（sub/role/tv）で HS256 署名する
func issueToken(secret string, userID int64, role string, tv int, now time.Time, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	if userID <= 0 {
		return "", errors.New("user must be positive")
	}
	if tv < 0 {
		return "", errors.New("tv must not be negative")
	}
	r, err := model.ParseRole(role)
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"sub":  userID,
		"role": string(r),
		"tv":   tv,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
