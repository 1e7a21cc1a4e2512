package config

type Config struct {
	Webhook    WebhookConfig    `yaml:"webhook" json:"webhook"`
	Branding   BrandingConfig   `yaml:"branding" json:"branding"`
	Messages   MessagesConfig   `yaml:"messages" json:"messages"`
	Header     HeaderConfig     `yaml:"header" json:"header"`
	Footer     FooterConfig     `yaml:"footer" json:"footer"`
	Style      StyleConfig      `yaml:"style" json:"style"`
	Dimensions DimensionsConfig `yaml:"dimensions" json:"dimensions"`
	UI         UIConfig         `yaml:"ui" json:"ui"`
	Input      InputConfig      `yaml:"input" json:"input"`
	Behavior   BehaviorConfig   `yaml:"behavior" json:"behavior"`
	CustomCSS  string           `yaml:"customCss" json:"customCss"`
}

type WebhookConfig struct {
	URL           string `yaml:"url" json:"url"`
	Route         string `yaml:"route" json:"route"`
	RetryAttempts int    `yaml:"retryAttempts" json:"retryAttempts"`
	TimeoutMs     int    `yaml:"timeoutMs" json:"timeoutMs"`
}

type BrandingConfig struct {
	BotID            string          `yaml:"botId" json:"botId"`
	Name             string          `yaml:"name" json:"name"`
	CompanyName      string          `yaml:"companyName" json:"companyName"`
	Logo             string          `yaml:"logo" json:"logo"`
	Favicon          string          `yaml:"favicon" json:"favicon"`
	WelcomeText      string          `yaml:"welcomeText" json:"welcomeText"`
	ResponseTimeText string          `yaml:"responseTimeText" json:"responseTimeText"`
	PlaceholderText  string          `yaml:"placeholderText" json:"placeholderText"`
	StartButtonText  string          `yaml:"startButtonText" json:"startButtonText"`
	PoweredBy        PoweredByConfig `yaml:"poweredBy" json:"poweredBy"`
}

type PoweredByConfig struct {
	Show   bool   `yaml:"show" json:"show"`
	Text   string `yaml:"text" json:"text"`
	Link   string `yaml:"link" json:"link"`
	NewTab bool   `yaml:"newTab" json:"newTab"`
}

type MessagesConfig struct {
	ErrorConnection string `yaml:"errorConnection" json:"errorConnection"`
	ErrorSend       string `yaml:"errorSend" json:"errorSend"`
	ErrorConfig     string `yaml:"errorConfig" json:"errorConfig"`
	LimitReached    string `yaml:"limitReached" json:"limitReached"`
	NoResponse      string `yaml:"noResponse" json:"noResponse"`
}

type HeaderConfig struct {
	ShowLogo        bool   `yaml:"showLogo" json:"showLogo"`
	ShowName        bool   `yaml:"showName" json:"showName"`
	ShowStatus      bool   `yaml:"showStatus" json:"showStatus"`
	StatusText      string `yaml:"statusText" json:"statusText"`
	BackgroundColor string `yaml:"backgroundColor" json:"backgroundColor"`
	TextColor       string `yaml:"textColor" json:"textColor"`
}

type FooterConfig struct {
	BackgroundColor string `yaml:"backgroundColor" json:"backgroundColor"`
	TextColor       string `yaml:"textColor" json:"textColor"`
}

type StyleConfig struct {
	PrimaryColor    string `yaml:"primaryColor" json:"primaryColor"`
	SecondaryColor  string `yaml:"secondaryColor" json:"secondaryColor"`
	AccentColor     string `yaml:"accentColor" json:"accentColor"`
	SurfaceColor    string `yaml:"surfaceColor" json:"surfaceColor"`
	BackgroundColor string `yaml:"backgroundColor" json:"backgroundColor"`
	FontColor       string `yaml:"fontColor" json:"fontColor"`
	BorderColor     string `yaml:"borderColor" json:"borderColor"`
	UserMessageBg   string `yaml:"userMessageBg" json:"userMessageBg"`
	UserMessageText string `yaml:"userMessageText" json:"userMessageText"`
	BotMessageBg    string `yaml:"botMessageBg" json:"botMessageBg"`
	BotMessageText  string `yaml:"botMessageText" json:"botMessageText"`
	Position        string `yaml:"position" json:"position"`
	FontFamily      string `yaml:"fontFamily" json:"fontFamily"`
	FontSize        int    `yaml:"fontSize" json:"fontSize"`
}

type DimensionsConfig struct {
	Width            int `yaml:"width" json:"width"`
	Height           int `yaml:"height" json:"height"`
	MaxWidth         int `yaml:"maxWidth" json:"maxWidth"`
	MaxHeight        int `yaml:"maxHeight" json:"maxHeight"`
	BottomOffset     int `yaml:"bottomOffset" json:"bottomOffset"`
	SideOffset       int `yaml:"sideOffset" json:"sideOffset"`
	ToggleButtonSize int `yaml:"toggleButtonSize" json:"toggleButtonSize"`
}

type UIConfig struct {
	WidgetBorderRadius       int    `yaml:"widgetBorderRadius" json:"widgetBorderRadius"`
	MessageBorderRadius      int    `yaml:"messageBorderRadius" json:"messageBorderRadius"`
	ButtonBorderRadius       int    `yaml:"buttonBorderRadius" json:"buttonBorderRadius"`
	ToggleButtonBorderRadius int    `yaml:"toggleButtonBorderRadius" json:"toggleButtonBorderRadius"`
	EnableAnimations         bool   `yaml:"enableAnimations" json:"enableAnimations"`
	AnimationDuration        int    `yaml:"animationDuration" json:"animationDuration"`
	EnableTypingAnimation    bool   `yaml:"enableTypingAnimation" json:"enableTypingAnimation"`
	TypingSpeed              int    `yaml:"typingSpeed" json:"typingSpeed"`
	ShowBotAvatar            bool   `yaml:"showBotAvatar" json:"showBotAvatar"`
	BotAvatarURL             string `yaml:"botAvatarUrl" json:"botAvatarUrl"`
	ShowUserAvatar           bool   `yaml:"showUserAvatar" json:"showUserAvatar"`
	ShowTimestamp            bool   `yaml:"showTimestamp" json:"showTimestamp"`
	ShowWelcomeScreen        bool   `yaml:"showWelcomeScreen" json:"showWelcomeScreen"`
	WelcomeSubtitle          string `yaml:"welcomeSubtitle" json:"welcomeSubtitle"`
}

type InputConfig struct {
	MaxLength int `yaml:"maxLength" json:"maxLength"`
	Rows      int `yaml:"rows" json:"rows"`
	MaxRows   int `yaml:"maxRows" json:"maxRows"`
}

type BehaviorConfig struct {
	AutoOpenOnLoad       bool `yaml:"autoOpenOnLoad" json:"autoOpenOnLoad"`
	AutoOpenDelay        int  `yaml:"autoOpenDelay" json:"autoOpenDelay"`
	RememberConversation bool `yaml:"rememberConversation" json:"rememberConversation"`
	// WebhookGreeting asks the webhook for the opening message instead of using WelcomeText.
	WebhookGreeting bool `yaml:"webhookGreeting" json:"webhookGreeting"`
}

// Default returns the configuration used when nothing overrides a field.
func Default() Config {
	return Config{
		Webhook: WebhookConfig{
			Route:         "general",
			RetryAttempts: 3,
			TimeoutMs:     30000,
		},
		Branding: BrandingConfig{
			Name:             "Support",
			WelcomeText:      "Welcome! How can we assist you today?",
			ResponseTimeText: "Our team typically responds within minutes",
			PlaceholderText:  "Type a message...",
			StartButtonText:  "Start conversation",
			PoweredBy: PoweredByConfig{
				Show:   true,
				Text:   "Powered by n8n",
				Link:   "https://n8n.io",
				NewTab: true,
			},
		},
		Messages: MessagesConfig{
			ErrorConnection: "Unable to connect. Please try again later.",
			ErrorSend:       "Unable to send message. Please try again.",
			ErrorConfig:     "Failed to load chat configuration",
			LimitReached:    "Message limit reached. Please try again later.",
			NoResponse:      "No response received.",
		},
		Header: HeaderConfig{
			ShowLogo:   true,
			ShowName:   true,
			StatusText: "Online",
		},
		Style: StyleConfig{
			PrimaryColor:    "#1a73e8",
			SecondaryColor:  "#0d47a1",
			AccentColor:     "#34a853",
			SurfaceColor:    "#f8f9fa",
			BackgroundColor: "#ffffff",
			FontColor:       "#202124",
			BorderColor:     "#e0e0e0",
			UserMessageBg:   "#1a73e8",
			UserMessageText: "#ffffff",
			BotMessageBg:    "#ffffff",
			BotMessageText:  "#202124",
			Position:        "right",
			FontFamily:      "Inter, -apple-system, BlinkMacSystemFont, sans-serif",
			FontSize:        14,
		},
		Dimensions: DimensionsConfig{
			Width:            380,
			Height:           580,
			MaxWidth:         380,
			MaxHeight:        580,
			BottomOffset:     24,
			SideOffset:       24,
			ToggleButtonSize: 56,
		},
		UI: UIConfig{
			WidgetBorderRadius:       12,
			MessageBorderRadius:      10,
			ButtonBorderRadius:       8,
			ToggleButtonBorderRadius: 50,
			EnableAnimations:         true,
			AnimationDuration:        200,
			EnableTypingAnimation:    true,
			TypingSpeed:              15,
			ShowWelcomeScreen:        true,
		},
		Input: InputConfig{
			MaxLength: 2000,
			Rows:      1,
			MaxRows:   5,
		},
		Behavior: BehaviorConfig{
			RememberConversation: true,
		},
	}
}

// BotID returns the bot identity used for storage keys and rows.
func (c *Config) BotID() string {
	return c.Branding.BotID
}
