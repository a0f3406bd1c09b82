package mcpserver

// ActionFormatContract describes how actions are written so LLM consumers
// add URLs the app can actually follow.
const ActionFormatContract = `# Automaton Action Format

An action is a unique key bound to a URL. Following an action hands the URL
to the operating system opener.

## Rules

1. **Keys** are non-empty and unique. Adding an existing key fails; use
   ` + "`" + `set_action_url` + "`" + ` to change its URL.
2. **URLs** are absolute RFC 3986 references such as ` + "`" + `tel:12345` + "`" + ` or
   ` + "`" + `https://example.com/weather` + "`" + `. Spaces and other characters outside the
   URL character set make the URL invalid ("Bad URL").
3. **Schemes** must be on the whitelist (see the ` + "`" + `automaton://schemes` + "`" + `
   resource). Other schemes are kept but cannot be followed
   ("Can't Follow This URL").
4. **Empty URLs** are allowed while editing but are never persisted.
5. Actions are listed sorted by key after a reload.

## Import document

` + "```" + `yaml
actions:
  phone: "tel:12345"
  weather: https://example.com/weather
` + "```" + `
`
