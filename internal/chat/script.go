package chat

// Top-level choice identifiers presented after the greeting.
const (
	ChoiceOurProcess   = "Our Process"
	ChoiceGeneralQA    = "General Questions"
	ChoiceNewQuote     = "New Quote"
	ChoiceCompareOffer = "Compare An Offer"
)

// script is a choice branch: assistant lines revealed sequentially, the
// stage the branch moves the conversation into, and whether the branch ends
// with the channel-selection affordance.
type script struct {
	stage      Stage
	lines      []string
	affordance *QuickReplyMeta
}

// channelAffordance is the interactive channel-selection control appended as
// the terminal step of a scripted branch.
var channelAffordance = QuickReplyMeta{
	Choices: []string{"Live chat", "Text us", "Call us", "Schedule a call"},
}

// channelAffordancePrompt is the content of the affordance message.
const channelAffordancePrompt = "How would you like to connect?"

// greetingLines open every session before the top-level choices appear.
var greetingLines = []string{
	"Hi, I'm Mint! Welcome to SmarterPayouts.",
	"I can answer questions about your structured settlement, get you an instant quote, or connect you with a specialist.",
}

// greetingPrompt introduces the top-level choice controls.
const greetingPrompt = "What would you like to do?"

// topLevelChoices is the quick-reply affordance shown after the greeting.
var topLevelChoices = QuickReplyMeta{
	Choices: []string{ChoiceOurProcess, ChoiceGeneralQA, ChoiceNewQuote, ChoiceCompareOffer},
}

// choiceScripts maps each known choice id to its branch. Unknown ids are
// logged and ignored by the orchestrator.
var choiceScripts = map[string]script{
	ChoiceOurProcess: {
		stage: StageGeneral,
		lines: []string{
			"Great question - here's how it works.",
			"Step 1: You get an instant quote for your future payments, no personal information needed.",
			"Step 2: Our team reviews the offer with you and prepares the paperwork.",
			"Step 3: A judge reviews and approves the transfer - it's required by law and protects you.",
			"Step 4: You get your money. Most transfers complete in 45 to 90 days.",
		},
		affordance: &channelAffordance,
	},
	ChoiceGeneralQA: {
		stage: StageGeneral,
		lines: []string{
			"Happy to help! Ask me anything about structured settlements, annuities, or selling your payments.",
			"If I can't answer, I'll connect you with a specialist.",
		},
		affordance: &channelAffordance,
	},
	ChoiceNewQuote: {
		stage: StageForm,
		lines: []string{
			"Let's get you an instant quote.",
			"Tell me the payments you'd like to sell - the amount and date of each - and I'll calculate today's value.",
		},
		affordance: &channelAffordance,
	},
	ChoiceCompareOffer: {
		stage: StageForm,
		lines: []string{
			"Already have an offer from another company? Smart move checking it.",
			"Share the offer amount and the payments it covers, and I'll show you how it compares to today's value.",
		},
		affordance: &channelAffordance,
	},
}

// KnownChoice reports whether id names a scripted choice branch. Transports
// use it to reject an id before accepting the submission.
func KnownChoice(id string) bool {
	_, ok := choiceScripts[id]
	return ok
}

// fallbackReply is the single retry-free response when the completion
// service fails.
const fallbackReply = "I'm having trouble answering right now - please try again in a moment."

// handoffConfirmations are the local confirmation shown after a hand-off
// request is recorded, per channel.
var handoffConfirmations = map[Channel]string{
	ChannelLiveChat:    "Connecting you with a specialist now - hold tight.",
	ChannelSMS:         "Got it - text us at (954) 764-7000 and we'll reply right away.",
	ChannelPhoneCall:   "Got it - a specialist will call you shortly.",
	ChannelAppointment: "Got it - pick a time that works and a specialist will call you then.",
}
