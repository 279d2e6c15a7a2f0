package service

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/adapters/transport/http/dto"
	customErrors "github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/model"
	repo "github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/auth/repo"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/domain/telegram/initdata"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/config"
	"github.com/Miraines/MoonyAndStarry/telegram-service/internal/infra/log"
)

// ErrIdentityMismatch is returned when the client-declared telegram_id
// differs from the one inside the signed payload.
var ErrIdentityMismatch = errors.New("telegram id does not match signed payload")

var defaultRoles = []string{"user"}

// Reason is the machine-readable cause of a rejected Telegram login.
func Reason(err error) string {
	if errors.Is(err, ErrIdentityMismatch) {
		return "identity_mismatch"
	}
	return initdata.Reason(err)
}

type authService struct {
	userRepo  repo.UserRepo
	tokenRepo repo.TokenRepo
	jwtUtil   jwt.JWTUtil
	verifier  *initdata.Verifier
	cfg       *config.Config
	v         *validator.Validate
	log       *zap.Logger
}

type Service interface {
	TelegramAuth(context.Context, dto.TelegramAuthDTO) (model.TokenPair, error)
	Validate(context.Context, dto.ValidateDTO) (model.User, error)
	Refresh(context.Context, dto.RefreshDTO) (model.TokenPair, error)
	Logout(context.Context, dto.LogoutDTO) error
}

func New(
	ur repo.UserRepo,
	tr repo.TokenRepo,
	jm jwt.JWTUtil,
	verifier *initdata.Verifier,
	cfg *config.Config,
	v *validator.Validate,
	logger *zap.Logger,
) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if verifier == nil {
		verifier = initdata.NewVerifier(cfg.TelegramBotToken, cfg.InitDataMaxAge)
	}
	return &authService{
		userRepo: ur, tokenRepo: tr, jwtUtil: jm, verifier: verifier, cfg: cfg, v: v, log: logger,
	}
}

func (a *authService) now() time.Time {
	if a.verifier.Now != nil {
		return a.verifier.Now()
	}
	return time.Now()
}

func (a *authService) TelegramAuth(
	ctx context.Context,
	in dto.TelegramAuthDTO,
) (model.TokenPair, error) {

	if err := a.v.Struct(in); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	var (
		profile model.TelegramProfile
		err     error
	)
	switch {
	case !a.verifier.Configured():
		profile, err = a.unsignedProfile(in)
	case in.InitData == "" && in.Hash != "":
		profile, err = a.widgetProfile(in)
	default:
		profile, err = a.initDataProfile(in)
	}
	if err != nil {
		a.log.Info("telegram auth rejected",
			zap.String("reason", Reason(err)),
			zap.Int64("telegram_id", in.TelegramID),
			log.Redact("init_data", in.InitData),
			zap.Error(err),
		)
		return model.TokenPair{}, err
	}

	user, err := a.upsertUser(ctx, profile)
	if err != nil {
		return model.TokenPair{}, err
	}
	return a.issueTokens(ctx, user.ID, user.TelegramID)
}

// Mini App path: the signature lives inside init_data.
func (a *authService) initDataProfile(in dto.TelegramAuthDTO) (model.TelegramProfile, error) {
	res, err := a.verifier.Verify(in.InitData)
	switch {
	case errors.Is(err, initdata.ErrMissingInput):
		return model.TelegramProfile{}, customErrors.InvalidArgument(err)
	case err != nil:
		return model.TelegramProfile{}, customErrors.InvalidCredentials(err)
	}

	if in.TelegramID != 0 && in.TelegramID != res.User.ID {
		return model.TelegramProfile{}, customErrors.InvalidCredentials(ErrIdentityMismatch)
	}

	return model.TelegramProfile{
		TelegramID:   res.User.ID,
		Username:     res.User.Username,
		FirstName:    res.User.FirstName,
		LastName:     res.User.LastName,
		PhotoURL:     res.User.PhotoURL,
		LanguageCode: res.User.LanguageCode,
	}, nil
}

// Login Widget path: fields come flat with a hash over them.
func (a *authService) widgetProfile(in dto.TelegramAuthDTO) (model.TelegramProfile, error) {
	if in.ID == 0 || in.AuthDate == 0 {
		return model.TelegramProfile{}, customErrors.InvalidArgument(initdata.ErrMissingInput)
	}

	params := map[string]string{
		"id":        strconv.FormatInt(in.ID, 10),
		"auth_date": strconv.FormatInt(in.AuthDate, 10),
	}
	for k, v := range map[string]string{
		"first_name": in.FirstName,
		"last_name":  in.LastName,
		"photo_url":  in.PhotoURL,
		"username":   in.Username,
	} {
		if v != "" {
			params[k] = v
		}
	}

	if err := initdata.CheckWidget(params, in.Hash, a.verifier.BotToken, a.now(), a.verifier.MaxAge); err != nil {
		return model.TelegramProfile{}, customErrors.InvalidCredentials(err)
	}

	return model.TelegramProfile{
		TelegramID: in.ID,
		Username:   in.Username,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		PhotoURL:   in.PhotoURL,
	}, nil
}

// Without a bot token nothing can be verified. The body is trusted only
// when the operator explicitly allowed it.
func (a *authService) unsignedProfile(in dto.TelegramAuthDTO) (model.TelegramProfile, error) {
	if !a.cfg.TelegramAllowUnsigned {
		return model.TelegramProfile{}, customErrors.NewUnavailable("telegram auth unavailable")
	}

	id := in.TelegramID
	if id == 0 {
		id = in.ID
	}
	if id == 0 {
		return model.TelegramProfile{}, customErrors.NewInvalidArgument("telegram_id is required")
	}

	a.log.Warn("telegram auth without signature check",
		zap.Int64("telegram_id", id))

	return model.TelegramProfile{
		TelegramID: id,
		Username:   nonEmpty(in.TelegramUsername, in.Username),
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		PhotoURL:   in.PhotoURL,
	}, nil
}

func (a *authService) upsertUser(ctx context.Context, p model.TelegramProfile) (model.User, error) {
	user, err := a.userRepo.GetUserByTelegramID(ctx, p.TelegramID)
	switch {
	case err == nil:
		if updateUser(&user, p) {
			if err := a.userRepo.UpdateUser(ctx, user); err != nil {
				return model.User{}, customErrors.WrapInternal(err, "UpdateUser")
			}
		}
		return user, nil

	case errors.Is(err, customErrors.ErrNotFound):
		user = model.User{
			ID:           uuid.New(),
			TelegramID:   p.TelegramID,
			Username:     nonEmpty(p.Username, "tg"+strconv.FormatInt(p.TelegramID, 10)),
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			PhotoURL:     p.PhotoURL,
			LanguageCode: p.LanguageCode,
		}
		_, err := a.userRepo.CreateUser(ctx, user)
		switch {
		case err == nil:
			return user, nil
		case errors.Is(err, customErrors.ErrAlreadyExists):
			// a concurrent first login created the row
			existing, err := a.userRepo.GetUserByTelegramID(ctx, p.TelegramID)
			if err != nil {
				return model.User{}, customErrors.WrapInternal(err, "GetUserByTelegramID")
			}
			return existing, nil
		default:
			return model.User{}, customErrors.WrapInternal(err, "CreateUser")
		}

	default:
		return model.User{}, customErrors.WrapInternal(err, "GetUserByTelegramID")
	}
}

func (a *authService) Validate(ctx context.Context, dto dto.ValidateDTO) (model.User, error) {

	if err := a.v.Struct(dto); err != nil {
		return model.User{}, customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.jwtUtil.ValidateAccessToken(dto.AccessToken)
	if err != nil {
		return model.User{}, customErrors.ErrInvalidToken
	}

	revoked, err := a.tokenRepo.IsAccessRevoked(ctx, claims.ID)
	if err != nil {
		return model.User{}, customErrors.WrapInternal(err, "Validate")
	}
	if revoked {
		return model.User{}, customErrors.ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.User{}, customErrors.ErrInvalidToken
	}

	user, err := a.userRepo.GetUserByID(ctx, uid)
	if err != nil {
		return model.User{}, customErrors.ErrInvalidToken
	}
	return user, nil
}

func (a *authService) Refresh(ctx context.Context, dto dto.RefreshDTO) (model.TokenPair, error) {
	if err := a.v.Struct(dto); err != nil {
		return model.TokenPair{}, customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.jwtUtil.ValidateRefreshToken(dto.RefreshToken)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	revoked, err := a.tokenRepo.IsRevoked(ctx, claims.ID)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}
	if revoked {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.TokenPair{}, customErrors.ErrInvalidToken
	}
	user, err := a.userRepo.GetUserByID(ctx, uid)
	switch {
	case errors.Is(err, customErrors.ErrNotFound):
		return model.TokenPair{}, customErrors.ErrInvalidToken
	case err != nil:
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}

	if err = a.tokenRepo.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "Refresh")
	}

	if dto.AccessToken != "" {
		if acc, errAcc := a.jwtUtil.ValidateAccessToken(dto.AccessToken); errAcc == nil {
			_ = a.tokenRepo.RevokeAccess(ctx, acc.ID, acc.ExpiresAt.Time)
		}
	}

	return a.issueTokens(ctx, user.ID, user.TelegramID)
}

func (a *authService) Logout(ctx context.Context, dto dto.LogoutDTO) error {

	if err := a.v.Struct(dto); err != nil {
		return customErrors.NewInvalidArgument(err.Error())
	}

	claims, err := a.jwtUtil.ValidateRefreshToken(dto.RefreshToken)
	if err != nil {
		return customErrors.ErrInvalidToken
	}

	if err := a.tokenRepo.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return customErrors.WrapInternal(err, "Logout")
	}

	// an expired access token is not an error here
	if acc, err := a.jwtUtil.ValidateAccessToken(dto.AccessToken); err == nil {
		_ = a.tokenRepo.RevokeAccess(ctx, acc.ID, acc.ExpiresAt.Time)
	}
	return nil
}

func (a *authService) issueTokens(ctx context.Context, uid uuid.UUID, telegramID int64) (model.TokenPair, error) {
	at, atExp, _, err := a.jwtUtil.GenerateAccessToken(uid, telegramID, defaultRoles)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateAccessToken")
	}
	rt, rtExp, jti, err := a.jwtUtil.GenerateRefreshToken(uid)
	if err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "GenerateRefreshToken")
	}
	if err = a.tokenRepo.Store(ctx, jti, rtExp); err != nil {
		return model.TokenPair{}, customErrors.WrapInternal(err, "StoreRefresh")
	}

	now := time.Now()
	return model.TokenPair{
		AccessToken:     at,
		RefreshToken:    rt,
		AccessTTL:       atExp.Sub(now),
		RefreshTTL:      rtExp.Sub(now),
		UserId:          uid,
		RefreshTokenJTI: jti,
	}, nil
}

func updateUser(u *model.User, p model.TelegramProfile) (changed bool) {
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst, changed = v, true
		}
	}
	set(&u.Username, p.Username)
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.PhotoURL, p.PhotoURL)
	set(&u.LanguageCode, p.LanguageCode)
	return
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
