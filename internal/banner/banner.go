package banner

import (
	"burstq/internal/tui/styles"

	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorPrimary).
		Bold(true)

	ascii := `
    __                    __  ____ 
   / /_  __  ___________ / /_/ __ \
  / __ \/ / / / ___/ ___/ __/ / / /
 / /_/ / /_/ / /  (__  ) /_/ /_/ / 
/_.___/\__,_/_/  /____/\__/\___\_\ 
                                   `

	return "\n" + style.Render(ascii) + "\n" +
		renderer.NewStyle().Foreground(styles.ColorSubtle).Render("  fire a burst of GETs, read the numbers") + "\n"
}
