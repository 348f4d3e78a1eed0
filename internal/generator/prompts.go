package generator

import (
	"fmt"
	"strings"
)

// SummaryPrompt asks for a Doxygen block for functionText
func SummaryPrompt(functionText string) string {
	var b strings.Builder
	b.WriteString(functionText)
	b.WriteString("\n\n")
	b.WriteString("You are given a C++ function. Your task is to:\n")
	b.WriteString("Generate a Doxygen-style comment block.\n")
	b.WriteString("Use this Doxygen format: \n")
	b.WriteString("/**\n")
	b.WriteString("* @brief \n")
	b.WriteString("* @details \n")
	b.WriteString("* Steps: Make these steps clear and precise, like a mind map.\n")
	b.WriteString("* 1. \n")
	b.WriteString("* 2. \n")
	b.WriteString("* @param \n")
	b.WriteString("* @return \n")
	b.WriteString("*/\n\n")
	b.WriteString("NOTE: The output MUST begin with '/**' and end with */.\n")
	return b.String()
}

const inlineInstructions = `You are a coding assistant.

Below is a C++ function. Each line starts with a line number followed by a colon and a space, like this:
<line number>: <actual code>

Your task is to analyze the code and return a JSON array of inline comments for the important logic blocks only.

Focus only on:
- Loops (for/while)
- Conditionals (if/else/switch)
- Key algorithm steps
- Function calls that drive the core logic

CRITICAL RULES for multi-line statements:
- For multi-line function calls, SQL queries, or string literals that span multiple lines:
  * Place the comment ONLY on the FINAL line of the statement (the one ending with ';' or '{').
  * Do NOT insert comments on intermediate lines.
- For multi-line if/for/while statements:
  * Place the comment on the line with the condition or the opening brace.
- For variable declarations spanning multiple lines:
  * Place the comment on the final line where the declaration ends.

Avoid:
- Comments for simple declarations, braces, or boilerplate code
- Commenting every line, only comment meaningful logic

Return a JSON array where each object contains:
- "line": the line number where the comment should be inserted
- "comment": a short explanation of the logic

Do NOT rewrite or reformat the code.
Only return a valid JSON array, and nothing else.

Example format:
[
  { "line": 4, "comment": "Sorts the list in ascending order" },
  { "line": 6, "comment": "Loops through the list to apply processing" }
]

Here is the code (preserve it exactly as given, including multi-line statements and backslashes):

`

// InlinePrompt asks for inline comments on numbered function text
func InlinePrompt(numberedText string) string {
	return inlineInstructions + numberedText
}

const reviewTemplate = `You are a strict C++ code reviewer.

File: %s
Function: %s

Review the provided function code and identify any CRITICAL GLITCHES such as:
- Memory leaks
- Null pointer dereferences
- Undefined behavior
- Threading issues
- Performance bottlenecks
- Security risks (buffer overflow, injections, etc.)

Return ONLY a JSON object in this format:
{
  "file": "<file_name>",
  "function": "<function_name>",
  "glitches": ["glitch1", "glitch2"]
}

Here is the code:

%s
`

// ReviewPrompt asks for a glitch review of one function
func ReviewPrompt(file, function, functionText string) string {
	return fmt.Sprintf(reviewTemplate, file, function, functionText)
}
