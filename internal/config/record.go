package config

import (
	"encoding/json"
)

// record wraps a bot_configurations row. Lookups follow the loose truthiness
// of the stored JSON: empty strings and zero numbers count as unset.
type record map[string]interface{}

func (r record) str(key, fallback string) string {
	if s, ok := r[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func (r record) num(key string, fallback int) int {
	switch v := r[key].(type) {
	case float64:
		if v != 0 {
			return int(v)
		}
	case int:
		if v != 0 {
			return v
		}
	case int64:
		if v != 0 {
			return int(v)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil && n != 0 {
			return int(n)
		}
	}
	return fallback
}

// notFalse is true unless the field is literally false.
func (r record) notFalse(key string) bool {
	b, ok := r[key].(bool)
	return !ok || b
}

// isTrue is true only when the field is literally true.
func (r record) isTrue(key string) bool {
	b, ok := r[key].(bool)
	return ok && b
}

// FromRecord maps a stored bot configuration row into a Config.
func FromRecord(row map[string]interface{}) Config {
	r := record(row)
	d := Default()

	primary := r.str("primary_color", d.Style.PrimaryColor)

	return Config{
		Webhook: WebhookConfig{
			URL:           r.str("webhook_url", ""),
			Route:         r.str("webhook_route", d.Webhook.Route),
			RetryAttempts: r.num("webhook_retry_attempts", d.Webhook.RetryAttempts),
			TimeoutMs:     r.num("webhook_timeout_ms", d.Webhook.TimeoutMs),
		},
		Branding: BrandingConfig{
			BotID:            r.str("bot_id", ""),
			Name:             r.str("name", d.Branding.Name),
			CompanyName:      r.str("company_name", ""),
			Logo:             r.str("logo_url", ""),
			Favicon:          r.str("favicon_url", ""),
			WelcomeText:      r.str("welcome_text", ""),
			ResponseTimeText: r.str("response_time_text", ""),
			PlaceholderText:  r.str("placeholder_text", r.str("input_placeholder_text", "")),
			StartButtonText:  r.str("start_button_text", ""),
			PoweredBy: PoweredByConfig{
				Show:   r.notFalse("footer_show"),
				Text:   r.str("footer_text", ""),
				Link:   r.str("footer_link", ""),
				NewTab: r.notFalse("footer_link_new_tab"),
			},
		},
		Messages: MessagesConfig{
			ErrorConnection: r.str("error_message_connection", d.Messages.ErrorConnection),
			ErrorSend:       r.str("error_message_send", d.Messages.ErrorSend),
			ErrorConfig:     r.str("error_message_config", d.Messages.ErrorConfig),
			LimitReached:    r.str("error_message_limit", d.Messages.LimitReached),
			NoResponse:      r.str("error_message_no_response", d.Messages.NoResponse),
		},
		Header: HeaderConfig{
			ShowLogo:        r.notFalse("header_show_logo"),
			ShowName:        r.notFalse("header_show_name"),
			ShowStatus:      r.isTrue("header_show_status"),
			StatusText:      r.str("header_status_text", ""),
			BackgroundColor: r.str("header_background_color", ""),
			TextColor:       r.str("header_text_color", ""),
		},
		Footer: FooterConfig{
			BackgroundColor: r.str("footer_background_color", ""),
			TextColor:       r.str("footer_text_color", ""),
		},
		Style: StyleConfig{
			PrimaryColor:    primary,
			SecondaryColor:  r.str("secondary_color", d.Style.SecondaryColor),
			AccentColor:     r.str("accent_color", d.Style.AccentColor),
			SurfaceColor:    r.str("surface_color", d.Style.SurfaceColor),
			BackgroundColor: r.str("background_color", d.Style.BackgroundColor),
			FontColor:       r.str("font_color", d.Style.FontColor),
			BorderColor:     r.str("border_color", d.Style.BorderColor),
			UserMessageBg:   r.str("user_message_bg", primary),
			UserMessageText: r.str("user_message_text", d.Style.UserMessageText),
			BotMessageBg:    r.str("bot_message_bg", d.Style.BotMessageBg),
			BotMessageText:  r.str("bot_message_text", d.Style.BotMessageText),
			Position:        r.str("position", d.Style.Position),
			FontFamily:      r.str("font_family", d.Style.FontFamily),
			FontSize:        r.num("font_size_base", d.Style.FontSize),
		},
		Dimensions: DimensionsConfig{
			Width:            r.num("widget_width", d.Dimensions.Width),
			Height:           r.num("widget_height", d.Dimensions.Height),
			MaxWidth:         r.num("widget_max_width", d.Dimensions.MaxWidth),
			MaxHeight:        r.num("widget_max_height", d.Dimensions.MaxHeight),
			BottomOffset:     r.num("bottom_offset", d.Dimensions.BottomOffset),
			SideOffset:       r.num("side_offset", d.Dimensions.SideOffset),
			ToggleButtonSize: r.num("toggle_button_size", d.Dimensions.ToggleButtonSize),
		},
		UI: UIConfig{
			WidgetBorderRadius:       r.num("widget_border_radius", d.UI.WidgetBorderRadius),
			MessageBorderRadius:      r.num("message_border_radius", d.UI.MessageBorderRadius),
			ButtonBorderRadius:       r.num("button_border_radius", d.UI.ButtonBorderRadius),
			ToggleButtonBorderRadius: r.num("toggle_button_border_radius", d.UI.ToggleButtonBorderRadius),
			EnableAnimations:         r.notFalse("enable_animations"),
			AnimationDuration:        r.num("animation_duration_ms", d.UI.AnimationDuration),
			EnableTypingAnimation:    r.notFalse("enable_typing_animation"),
			TypingSpeed:              r.num("typing_speed_ms", d.UI.TypingSpeed),
			ShowBotAvatar:            r.isTrue("show_bot_avatar"),
			BotAvatarURL:             r.str("bot_avatar_url", ""),
			ShowUserAvatar:           r.isTrue("show_user_avatar"),
			ShowTimestamp:            r.isTrue("show_timestamp"),
			ShowWelcomeScreen:        r.notFalse("show_welcome_screen"),
			WelcomeSubtitle:          r.str("welcome_screen_subtitle", ""),
		},
		Input: InputConfig{
			MaxLength: r.num("input_max_length", d.Input.MaxLength),
			Rows:      r.num("input_rows", d.Input.Rows),
			MaxRows:   r.num("input_max_rows", d.Input.MaxRows),
		},
		Behavior: BehaviorConfig{
			AutoOpenOnLoad:       r.isTrue("auto_open_on_load"),
			AutoOpenDelay:        r.num("auto_open_delay_ms", d.Behavior.AutoOpenDelay),
			RememberConversation: r.notFalse("remember_conversation"),
			WebhookGreeting:      r.isTrue("webhook_greeting"),
		},
		CustomCSS: r.str("custom_css", ""),
	}
}
