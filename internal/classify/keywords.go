package classify

// Keywords are matched as substrings of the lowercased window title and process name.
// Entertainment is evaluated before productive; see Classifier.Categorize. Browser
// and chat names sit in the productive list, so "YouTube - Chrome" is still
// entertainment while a bare "Chrome" window is productive.
var entertainmentKeywords = sortedUnique([]string{
	"anime", "battle.net", "broadcast", "comic", "discord", "disney+",
	"entertainment", "epic games", "facebook", "film", "fortnite", "game",
	"gaming", "hobby", "hulu", "instagram", "league of legends", "leisure",
	"manga", "minecraft", "movie", "music", "netflix", "origin", "player",
	"prime video", "reddit", "roblox", "snapchat", "social", "song", "spotify",
	"steam", "stream", "tiktok", "twitch", "twitter", "video", "youtube",
})

var productiveKeywords = sortedUnique([]string{
	"acrobat", "adobe reader", "analysis", "analytics", "asana", "atom",
	"bitbucket", "browser", "calculator", "calendar", "chat", "chrome", "cmd",
	"code", "coding", "confluence", "course", "database", "debug", "design",
	"development", "document", "documentation", "eclipse", "edge", "editor",
	"email", "excel", "firefox", "git", "github",
	"intellij", "jira", "learn", "mail", "manual", "meeting", "notepad", "notes",
	"onenote", "outlook", "pdf", "planning", "powerpoint", "powershell",
	"presentation", "programming", "project", "pycharm", "research", "slack",
	"safari", "spreadsheet", "sql", "statistics", "study", "sublime", "task",
	"teams", "terminal", "todo", "trello", "tutorial", "visual studio", "vscode",
	"web", "webex", "word", "writing", "zoom",
})
