package dto

// TelegramAuthDTO carries either a Mini App init_data payload or the
// fields posted by the Telegram Login Widget.
type TelegramAuthDTO struct {
	InitData         string `json:"init_data"         form:"init_data"         validate:"max=8192"`
	TelegramID       int64  `json:"telegram_id"       form:"telegram_id"       validate:"gte=0"`
	TelegramUsername string `json:"telegram_username" form:"telegram_username" validate:"max=64"`
	FirstName        string `json:"first_name"        form:"first_name"        validate:"max=128"`
	LastName         string `json:"last_name"         form:"last_name"         validate:"max=128"`

	// Login Widget
	ID       int64  `json:"id"        form:"id"        validate:"gte=0"`
	AuthDate int64  `json:"auth_date" form:"auth_date" validate:"gte=0"`
	Hash     string `json:"hash"      form:"hash"      validate:"omitempty,hexadecimal,len=64"`
	PhotoURL string `json:"photo_url" form:"photo_url" validate:"omitempty,url"`
	Username string `json:"username"  form:"username"  validate:"max=64"`
}

type RefreshDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	AccessToken  string `json:"access_token,omitempty"`
}

type ValidateDTO struct {
	AccessToken string `json:"access_token" validate:"required"`
}

type LogoutDTO struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	AccessToken  string `json:"access_token,omitempty"`
}
