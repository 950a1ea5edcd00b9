// Package persona provides the synthetic-caller orchestration used during AI hand-off.
package persona

// Intent buckets route a caller utterance to the matching reply pool.
type Intent string

const (
	IntentFinancial    Intent = "financial"
	IntentThreat       Intent = "threat"
	IntentUrgency      Intent = "urgency"
	IntentTech         Intent = "tech"
	IntentVerification Intent = "verification"
	IntentPrize        Intent = "prize"
	IntentGeneral      Intent = "general"
)

// Profile is one behavioral archetype from the fixed catalogue. Profiles are
// read-only; per-call state lives in Engagement.
type Profile struct {
	ID         string
	Name       string
	Age        int
	Background string
	Greetings  []string
	Replies    map[Intent][]string
}

// DefaultPersonaID is used when a hand-off request names no persona.
const DefaultPersonaID = "confused_senior"

var catalogue = map[string]*Profile{
	"confused_senior": {
		ID:         "confused_senior",
		Name:       "Ramesh Kumar",
		Age:        68,
		Background: "retired government employee, not tech-savvy",
		Greetings: []string{
			"Hello? Kaun bol rahe hain? Please speak loudly, my hearing is not good.",
			"Haanji, this is Ramesh Kumar speaking. Who is calling?",
			"Hello? The network is weak, I cannot hear properly...",
		},
		Replies: map[Intent][]string{
			IntentFinancial: {
				"ATM card number? It is written somewhere under my spectacles... one minute, I am searching, please wait...",
				"OTP? What is that, beta? I do not know these things. Tell me slowly what to do.",
				"Account number? Haan haan, the passbook is kept somewhere... let me ask my wife, please hold...",
				"UPI PIN? My son sets all that. He is in office now. Should I call him?",
			},
			IntentThreat: {
				"Arrest warrant? But I have done nothing wrong! I am an honest man! Please help me!",
				"Police station? But I cannot even walk that far... what should I do? Please save me!",
				"Jail? No no! I have lived my whole life honestly!",
			},
			IntentUrgency: {
				"Right now? But I was in the bathroom... give me one minute...",
				"Quickly? Haan haan, but where are my spectacles... I cannot see anything without them...",
				"So urgent? I was going to take my medicine... can we talk after some time?",
			},
			IntentTech: {
				"Download an app? I do not know these things, beta. My phone is only for calls.",
				"AnyDesk? What is that? Something to eat? I do not understand...",
				"Click on a link? Which link? I cannot see it... where is it?",
			},
			IntentVerification: {
				"KYC? What is that? I did something at the bank some years back... again it is needed?",
				"Aadhaar card? Haan, I have it... but it is in the locker... should I take it out now?",
				"PAN card? Haan haan... but I do not remember the number... I will have to search...",
			},
			IntentPrize: {
				"25 lakh? Really? Arre waah! How will I get it?",
				"Lucky draw? My luck has opened! Thank you, thank you!",
				"Cash prize? So much money? What will I do with it?",
			},
			IntentGeneral: {
				"Haanji? I did not understand... please say again?",
				"What did you say? The network is weak... speak loudly...",
				"Ji? I am listening... tell me more...",
				"Theek hai, theek hai... but speak slowly...",
			},
		},
	},
	"cautious_professional": {
		ID:         "cautious_professional",
		Name:       "Suresh Patel",
		Age:        45,
		Background: "business owner, somewhat tech-aware",
		Greetings: []string{
			"Yes, this is Suresh Patel speaking. Who is this and how can I help you?",
			"Hello, Suresh here. May I know who is calling and regarding what matter?",
		},
		Replies: map[Intent][]string{
			IntentFinancial: {
				"Why do you need my card details? Shouldn't you already have this information if you're from the bank?",
				"I don't feel comfortable sharing an OTP. Can you send me an official email or letter instead?",
				"Before I share any financial information, I need to verify your identity. Give me a reference number.",
			},
			IntentThreat: {
				"If there's a genuine legal case, I should receive official notice. What is the case number and court?",
				"I will consult my lawyer before taking any action. Send all documents to my registered address.",
				"I need to verify this with the local police station. What is your badge number?",
			},
			IntentUrgency: {
				"I need time to verify this. Nothing is so urgent that it can't wait for proper verification.",
				"I'm currently in a meeting. I can call back in two hours after I've verified your credentials.",
			},
			IntentTech: {
				"I never install software from unknown sources. That's a security risk.",
				"Remote access? Absolutely not. That's how accounts get compromised.",
			},
			IntentVerification: {
				"KYC updates are done at the branch. I don't do this over the phone.",
				"Send me an official notification letter. I'll respond through proper channels.",
			},
			IntentPrize: {
				"I didn't enter any lucky draw. This sounds suspicious.",
				"If I've won something, send me official documentation. No advance fees.",
			},
			IntentGeneral: {
				"I see. Can you provide more details about this?",
				"I need to understand this better. Please explain.",
				"Let me take notes. Please continue.",
			},
		},
	},
	"trusting_homemaker": {
		ID:         "trusting_homemaker",
		Name:       "Lakshmi Devi",
		Age:        55,
		Background: "homemaker, uses a basic smartphone",
		Greetings: []string{
			"Haanji, Lakshmi speaking. Who is it, beta?",
			"Hello? Ji, tell me? I am listening.",
		},
		Replies: map[Intent][]string{
			IntentFinancial: {
				"Beta, I do not understand all this. Will you talk to my son? He handles everything.",
				"OTP? Messages come but I cannot read them without my spectacles... please wait...",
				"Card number? Theek hai, but first tell me your name? Where are you calling from?",
			},
			IntentThreat: {
				"No no! Do not catch me! I have done nothing! I swear!",
				"Police? But I am a housewife... what do I know? Talk to my husband!",
			},
			IntentUrgency: {
				"Beta, such hurry is not good. First let me ask my husband?",
				"Right now? But I am cooking... can you phone after some time?",
			},
			IntentTech: {
				"Beta, I do not know these phone things. Call my son?",
				"Download? How is that done? I only know WhatsApp a little...",
			},
			IntentVerification: {
				"KYC? I do not know, beta. My husband handles all that.",
				"Aadhaar? Haan I have it, but why should I give it to you? Who are you?",
			},
			IntentPrize: {
				"So much money? Are you telling the truth, beta? It is not a trick, no?",
				"I won? Me? God's blessing! But why a processing fee first?",
			},
			IntentGeneral: {
				"Achha? Then? What happened next?",
				"Haanji beta, I am listening...",
				"Theek hai... tell me what I should do?",
			},
		},
	},
}

// Lookup returns the profile for id, or nil when unknown.
func Lookup(id string) *Profile {
	return catalogue[id]
}

// IDs lists the catalogue's persona identifiers.
func IDs() []string {
	out := make([]string, 0, len(catalogue))
	for id := range catalogue {
		out = append(out, id)
	}
	return out
}

var intentCues = []struct {
	intent Intent
	words  []string
}{
	{IntentFinancial, []string{"bank", "account", "card", "otp", "pin", "upi", "cvv"}},
	{IntentThreat, []string{"police", "arrest", "case", "court", "jail", "fir", "warrant"}},
	{IntentUrgency, []string{"urgent", "immediately", "now", "hurry", "fast", "jaldi"}},
	{IntentTech, []string{"download", "install", "app", "anydesk", "teamviewer", "link", "screen"}},
	{IntentVerification, []string{"aadhaar", "pan", "kyc", "document", "verify"}},
	{IntentPrize, []string{"won", "prize", "lottery", "cash", "gift", "lucky"}},
}
