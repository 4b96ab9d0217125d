package slack

import "fmt"

// The reminder text below is the parsing contract shown to the end user:
// whatever format it asks for is exactly what ParseCheckIn accepts.

const formatInstructions = "*1.* What you worked on\n*2.* What's next\n*3.* Blockers (or \"none\")\n*4.* Score (1-5)"

const formatExample = "Example: ```1. Fixed the login bug\n2. Dashboard redesign\n3. None\n4. 4```"

// ReminderMessage builds the daily standup reminder DM for a team member.
func ReminderMessage(channel, teamName string) Message {
	return Message{
		Channel: channel,
		Text:    fmt.Sprintf("Time for your daily standup with %s!", teamName),
		Blocks: []Block{
			{
				Type: "header",
				Text: &BlockText{Type: "plain_text", Text: fmt.Sprintf("🏁 %s Standup", teamName)},
			},
			{
				Type: "section",
				Text: &BlockText{
					Type: "mrkdwn",
					Text: "Reply to this message with your standup update in this format:\n\n" + formatInstructions,
				},
			},
			{
				Type:     "context",
				Elements: []*BlockText{{Type: "mrkdwn", Text: formatExample}},
			},
		},
	}
}

// HelpMessage is sent back when a reply does not parse.
func HelpMessage() string {
	return "❌ Invalid format. Please reply with:\n\n" + formatInstructions + "\n\n" + formatExample
}

// ConfirmationMessage is sent back after a check-in is recorded.
func ConfirmationMessage(score int) string {
	return fmt.Sprintf("✅ *Standup recorded!* Score: *%d/5*\nYour team can see this on the dashboard.", score)
}

// WelcomeMessage greets the installing admin after OAuth completes.
func WelcomeMessage(teamName string) string {
	return fmt.Sprintf("🎉 Slack is now connected for *%s*!\n\nTeam members can link their accounts from the team settings page to start receiving daily standup reminders.", teamName)
}
