package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"chat-widget/internal/chat"
	"chat-widget/internal/config"
)

const (
	defaultWidth = 80
	maxBubble    = 64
)

type styles struct {
	header  lipgloss.Style
	status  lipgloss.Style
	welcome lipgloss.Style
	subtle  lipgloss.Style
	user    lipgloss.Style
	bot     lipgloss.Style
	label   lipgloss.Style
	errMsg  lipgloss.Style
	limit   lipgloss.Style
	typing  lipgloss.Style
	footer  lipgloss.Style
	panel   lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, cfg *config.Config) styles {
	s := cfg.Style
	headerBg := cfg.Header.BackgroundColor
	if headerBg == "" {
		headerBg = s.PrimaryColor
	}
	headerFg := cfg.Header.TextColor
	if headerFg == "" {
		headerFg = "#ffffff"
	}
	return styles{
		header: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(headerFg)).
			Background(lipgloss.Color(headerBg)).
			Padding(0, 1),
		status: r.NewStyle().
			Foreground(lipgloss.Color(s.AccentColor)),
		welcome: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(s.PrimaryColor)),
		subtle: r.NewStyle().
			Foreground(lipgloss.Color("243")),
		user: r.NewStyle().
			Foreground(lipgloss.Color(s.UserMessageText)).
			Background(lipgloss.Color(s.UserMessageBg)).
			Padding(0, 1),
		bot: r.NewStyle().
			Foreground(lipgloss.Color(s.BotMessageText)).
			Background(lipgloss.Color(s.BotMessageBg)).
			Padding(0, 1),
		label: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(s.SecondaryColor)),
		errMsg: r.NewStyle().
			Foreground(lipgloss.Color("196")),
		limit: r.NewStyle().
			Foreground(lipgloss.Color("214")),
		typing: r.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("243")),
		footer: r.NewStyle().
			Foreground(lipgloss.Color("240")),
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("196")).
			Padding(0, 1),
	}
}

// Terminal draws the conversation on a text terminal.
type Terminal struct {
	mu          sync.Mutex
	out         io.Writer
	cfg         *config.Config
	st          styles
	width       int
	typingSpeed time.Duration
	sleep       func(time.Duration)
	now         func() time.Time
	typing      bool
}

func NewTerminal(out io.Writer, cfg *config.Config) *Terminal {
	speed := cfg.UI.TypingSpeed
	if speed <= 0 {
		speed = config.Default().UI.TypingSpeed
	}
	return &Terminal{
		out:         out,
		cfg:         cfg,
		st:          newStyles(lipgloss.NewRenderer(out), cfg),
		width:       terminalWidth(out),
		typingSpeed: time.Duration(speed) * time.Millisecond,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return defaultWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// SetSleep replaces the delay used between typed characters.
func (t *Terminal) SetSleep(sleep func(time.Duration)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sleep = sleep
}

func (t *Terminal) bubbleWidth() int {
	w := t.width - 4
	if w > maxBubble {
		w = maxBubble
	}
	if w < 20 {
		w = 20
	}
	return w
}

// Header prints the bot name, status and welcome screen.
func (t *Terminal) Header() {
	t.mu.Lock()
	defer t.mu.Unlock()

	b := t.cfg.Branding
	var line []string
	if t.cfg.Header.ShowName && b.Name != "" {
		line = append(line, t.st.header.Render(b.Name))
	}
	if t.cfg.Header.ShowStatus {
		status := t.cfg.Header.StatusText
		if status == "" {
			status = "Online"
		}
		line = append(line, t.st.status.Render("● "+status))
	}
	if len(line) > 0 {
		fmt.Fprintln(t.out, strings.Join(line, " "))
	}

	if t.cfg.UI.ShowWelcomeScreen {
		welcome := b.WelcomeText
		if welcome == "" {
			welcome = config.Default().Branding.WelcomeText
		}
		fmt.Fprintln(t.out, t.st.welcome.Render(welcome))
		if b.ResponseTimeText != "" {
			fmt.Fprintln(t.out, t.st.subtle.Render(b.ResponseTimeText))
		}
		if t.cfg.UI.WelcomeSubtitle != "" {
			fmt.Fprintln(t.out, t.st.subtle.Render(t.cfg.UI.WelcomeSubtitle))
		}
	}
	fmt.Fprintln(t.out)
}

// Footer prints the powered-by line.
func (t *Terminal) Footer() {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.cfg.Branding.PoweredBy
	if !p.Show || p.Text == "" {
		return
	}
	text := p.Text
	if p.Link != "" {
		text += " (" + p.Link + ")"
	}
	fmt.Fprintln(t.out, t.st.footer.Render(text))
}

func (t *Terminal) senderLabel(s chat.Sender) string {
	switch s {
	case chat.SenderUser:
		return "You"
	case chat.SenderAgent:
		return "Agent"
	default:
		if t.cfg.Branding.Name != "" {
			return t.cfg.Branding.Name
		}
		return "Bot"
	}
}

// Append renders one entry. Animated entries are typed out.
func (t *Terminal) Append(e chat.Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearTypingLocked()

	switch e.Kind {
	case chat.KindError:
		fmt.Fprintln(t.out, t.st.errMsg.Render("! "+e.Content))
		return
	case chat.KindLimit:
		fmt.Fprintln(t.out, t.st.limit.Render("! "+e.Content))
		return
	}

	label := t.senderLabel(e.Sender)
	if t.cfg.UI.ShowTimestamp {
		label += " " + t.st.subtle.Render(t.now().Format("15:04"))
	}

	if e.Sender == chat.SenderUser {
		bubble := t.st.user.Render(wrap(e.Content, t.bubbleWidth()))
		fmt.Fprintln(t.out, lipgloss.PlaceHorizontal(t.width, lipgloss.Right, t.st.label.Render(label)))
		fmt.Fprintln(t.out, lipgloss.PlaceHorizontal(t.width, lipgloss.Right, bubble))
		return
	}

	fmt.Fprintln(t.out, t.st.label.Render(label))
	if e.Animate {
		t.typeOut(e.Content)
		return
	}
	fmt.Fprintln(t.out, t.st.bot.Render(wrap(e.Content, t.bubbleWidth())))
}

func (t *Terminal) typeOut(text string) {
	for _, r := range text {
		fmt.Fprint(t.out, string(r))
		t.sleep(t.typingSpeed)
	}
	fmt.Fprintln(t.out)
}

func (t *Terminal) ShowTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.typing {
		return
	}
	t.typing = true
	fmt.Fprint(t.out, t.st.typing.Render(t.senderLabel(chat.SenderBot)+" is typing..."))
}

func (t *Terminal) HideTyping() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearTypingLocked()
}

func (t *Terminal) clearTypingLocked() {
	if !t.typing {
		return
	}
	t.typing = false
	fmt.Fprint(t.out, "\r\033[K")
}

// Clear wipes the message list.
func (t *Terminal) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typing = false
	if f, ok := t.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(t.out, "\033[H\033[2J")
		return
	}
	fmt.Fprintln(t.out, t.st.subtle.Render("--- new conversation ---"))
}

// ShowError replaces the chat with a fixed error panel.
func (t *Terminal) ShowError(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearTypingLocked()
	fmt.Fprintln(t.out, t.st.panel.Render(t.st.errMsg.Render(msg)))
}

// wrap breaks text into lines of at most width runes on word boundaries.
func wrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if len([]rune(line))+1+len([]rune(w)) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
