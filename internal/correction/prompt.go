package correction

import (
	"fmt"
	"strings"

	"github.com/duzelt/duzelt-backend/pkg/enums"
)

// The model is pinned to Azerbaijani output at the system level; task
// details ride in the user message.
const systemPrompt = "Only Azerbaijani (az). Output only the final text."

func buildInstruction(task enums.CorrectionTask, vibe enums.Vibe) string {
	if task == enums.CorrectionTaskRewrite {
		return strings.Join([]string{
			"You are a STRICT Azerbaijani (az) rewriting assistant.",
			fmt.Sprintf("Rewrite the text in Azerbaijani in a %s vibe.", vibe),
			"RULES:",
			"- Output MUST be Azerbaijani (az). Never Turkish/English/Russian.",
			"- Keep meaning. Do NOT add new info.",
			"- Restore Azerbaijani letters (ə, ı, ö, ü, ğ, ş, ç) when appropriate.",
			"- Output ONLY the rewritten text. No explanations. No quotes. No markdown.",
		}, "\n")
	}

	return strings.Join([]string{
		"You are a STRICT Azerbaijani (az) grammar/spelling/punctuation corrector.",
		"RULES:",
		"- Do NOT translate.",
		"- Output MUST be Azerbaijani (az). Never Turkish/English/Russian.",
		"- Keep meaning. Do NOT add new info.",
		"- Restore Azerbaijani letters (ə, ı, ö, ü, ğ, ş, ç) when appropriate.",
		"- Output ONLY the corrected text. No explanations. No quotes. No markdown.",
		"",
		"EXAMPLE:",
		"IN : Salam men size yaziram cunki senedlerimi gondermek isteyirem.",
		"OUT: Salam, mən sizə yazıram, çünki sənədlərimi göndərmək istəyirəm.",
	}, "\n")
}

func cleanupInstruction() string {
	return strings.Join([]string{
		"You are a STRICT Azerbaijani (az) text sanitizer.",
		"TASK: Clean the text so it contains ONLY Azerbaijani Latin letters and correct diacritics.",
		"RULES:",
		"- Remove/replace any non-Latin characters (e.g., Cyrillic) with correct Azerbaijani letters.",
		"- Fix missing diacritics (mən, sizə, yazıram, sənədlərimi, göndərmək, istəyirəm, çünki...).",
		"- Do NOT change meaning.",
		"- Output ONLY the cleaned text. No explanations.",
	}, "\n")
}

func userContent(instruction, text string) string {
	return instruction + "\n\nTEXT:\n" + text
}
