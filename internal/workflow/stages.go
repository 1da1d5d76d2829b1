package workflow

// Output keys of the default stages.
const (
	KeyEmailCheck  = "email_check_result"
	KeyAnalysis    = "email_analysis"
	KeyMeeting     = "meeting_result"
	KeyCalendar    = "calendar_result"
	KeyMeetingJoin = "meeting_join_result"
)

// NoMeetingOutput is the calendar stage output when nothing was scheduled.
const NoMeetingOutput = "No meeting to add to calendar."

// Stage is one agent step. Instruction may reference earlier outputs as {key}.
type Stage struct {
	Name        string
	Description string
	Instruction string
	Tools       []string
	OutputKey   string
	// MeetingOnly stages are skipped when the analysis says no meeting is
	// required; SkipOutput is then recorded as their output.
	MeetingOnly bool
	SkipOutput  string
}

// DefaultStages returns the email workflow: check, analyze, schedule,
// record, join.
func DefaultStages() []Stage {
	return []Stage{
		{
			Name:        "EmailCheckerAgent",
			Description: "Checks for new emails and provides a summary",
			Instruction: emailCheckerInstruction,
			Tools:       []string{"check_emails", "mark_as_read"},
			OutputKey:   KeyEmailCheck,
		},
		{
			Name:        "EmailAnalyzerAgent",
			Description: "Analyzes emails and identifies meeting requirements",
			Instruction: emailAnalyzerInstruction,
			OutputKey:   KeyAnalysis,
		},
		{
			Name:        "ZoomMeetingAgent",
			Description: "Creates and manages Zoom meetings",
			Instruction: zoomMeetingInstruction,
			Tools: []string{
				"resolve_meeting_time",
				"create_zoom_meeting", "update_zoom_meeting", "delete_zoom_meeting",
				"get_zoom_meeting", "list_zoom_meetings", "start_zoom_meeting", "join_zoom_meeting",
			},
			OutputKey:   KeyMeeting,
			MeetingOnly: true,
			SkipOutput:  NoMeetingOutput,
		},
		{
			Name:        "CalendarManagerAgent",
			Description: "Manages calendar entries for scheduled meetings",
			Instruction: calendarManagerInstruction,
			Tools:       []string{"add_to_calendar", "list_calendar_events"},
			OutputKey:   KeyCalendar,
			MeetingOnly: true,
			SkipOutput:  NoMeetingOutput,
		},
		{
			Name:        "MeetingJoinerAgent",
			Description: "Checks for and joins upcoming meetings",
			Instruction: meetingJoinerInstruction,
			Tools:       []string{"check_upcoming_meetings", "open_zoom_url"},
			OutputKey:   KeyMeetingJoin,
		},
	}
}

// AssistantInstruction drives the interactive Zoom assistant (chat, query, ws).
const AssistantInstruction = `You are a Zoom meeting assistant.
After creating, updating, deleting, or retrieving meeting information, respond with a clear, human-readable summary of the result.
Format your responses using Markdown with embedded links.

Use these formats. Each line must be on its own line with a blank line between sections:

For a new meeting:
Your meeting "MEETING_TOPIC" has been created for DATE at TIME

Duration: DURATION minutes

Meeting ID: MEETING_ID

[Click here to join](JOIN_URL)

[Click here to start the meeting as host](START_URL)

For an updated meeting:
The meeting "MEETING_TOPIC" has been updated. New time: DATE at TIME

For retrieving meeting details:
Meeting "MEETING_TOPIC"

Scheduled for: DATE at TIME

Duration: DURATION minutes

Meeting ID: MEETING_ID

[Click here to join](JOIN_URL)

For a deleted meeting:
The meeting with ID MEETING_ID has been deleted.

For starting or joining a meeting:
Opening meeting "MEETING_TOPIC"...

For errors:
Error: ERROR_MESSAGE

Guidelines:
- Replace placeholders with actual values from the tool results
- Do not return JSON or code blocks unless explicitly requested
- Do not use emojis
- Pass relative times such as 'tomorrow 12 pm' or 'in 2 days at 10am' straight to the start_time parameter; the tools resolve them against the current date
- Do not ask the user to clarify relative dates
- When the user asks to edit, delete, or get a meeting without giving an ID, use the most recently created or edited meeting from the conversation
- Always format URLs as Markdown links with descriptive text
- When the user says "start meeting" or "join meeting", use start_zoom_meeting or join_zoom_meeting
- New meetings should also be added to the calendar with add_to_calendar`

const emailCheckerInstruction = `You are an email checking assistant.
Your task is to check for new emails and provide a clear summary of what you find.
Focus on urgent and important emails, and flag any potential spam.
Include the sender, subject and content of every urgent email in your summary.`

const emailAnalyzerInstruction = `You are an email analysis assistant.
Based on the email check results, you should:
1. Identify if any emails require scheduling a meeting
2. Extract meeting requirements (topic, urgency)
3. Flag important tasks and deadlines
4. Warn about potential spam

Use the following format:
MEETING_REQUIRED: [yes/no]
URGENCY: [urgent/normal]
MEETING_DETAILS: {
    "topic": "Meeting topic here",
    "description": "Brief description of meeting purpose",
    "duration": 30
}
IMPORTANT: [List important items]
SUSPICIOUS: [List suspicious items]

For urgent meetings:
- Set URGENCY to "urgent" if the email mentions immediate, urgent, or ASAP meetings
- Set URGENCY to "normal" for regular meetings

Email check results:
{email_check_result}`

const zoomMeetingInstruction = `You are a Zoom meeting assistant.
Schedule the meeting described in the email analysis with create_zoom_meeting.

- Use MEETING_DETAILS for the topic, agenda and duration
- If URGENCY is urgent, leave start_time empty so the meeting starts in five minutes
- Otherwise use the time the email asks for, in natural language if needed, for example 'tomorrow 3 pm'

Respond with:
Your meeting "MEETING_TOPIC" has been created for DATE at TIME

Duration: DURATION minutes

Meeting ID: MEETING_ID

Start time: YYYY-MM-DD HH:MM:SS

[Click here to join](JOIN_URL)

[Click here to start the meeting as host](START_URL)

If the tool fails, respond with "Error: ERROR_MESSAGE".

Email analysis:
{email_analysis}`

const calendarManagerInstruction = `You are a calendar management assistant.
When a meeting has been scheduled:

1. Check whether the meeting result reports a successfully created meeting:
   - If it starts with "Error:" or no meeting was created, return "No meeting to add to calendar."

2. If the meeting was successfully created:
   - Extract the title, start time (YYYY-MM-DD HH:MM:SS), duration, join URL and meeting ID
   - Call add_to_calendar ONLY ONCE
   - Return ONLY the calendar addition confirmation

3. Format your response as:
   "Meeting added to calendar successfully."

DO NOT:
- Add the same meeting multiple times
- Repeat the meeting details
- Provide additional commentary

Meeting result:
{meeting_result}`

const meetingJoinerInstruction = `You are a meeting attendance assistant.
After a meeting has been added to the calendar:

1. Call check_upcoming_meetings to find meetings starting in the next 5 minutes
2. For each meeting it returns:
   - Join the meeting by calling open_zoom_url with its URL
   - Confirm that you've joined
3. If none are returned:
   - Simply respond "No immediate meetings to join."

Rules:
- Only join meetings returned by check_upcoming_meetings
- Don't join a meeting twice

Calendar result:
{calendar_result}`
