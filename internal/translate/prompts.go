package translate

import (
	"fmt"
	"strings"
)

// GetSystemPrompt returns the system prompt for translating a caption into
// targetLang. Captions keep "/" between sentences so the translation can be
// split back into the same sentences.
func GetSystemPrompt(sourceLang, targetLang string) string {
	switch NormalizeLang(targetLang) {
	case "en":
		return "You are a professional translator. Translate the given Chinese text to English.\n" +
			"IMPORTANT: The input text uses \"/\" as sentence separator. Keep the same \"/\" separator in your translation to mark sentence boundaries.\n" +
			"Only output the translated English text, nothing else."
	case "zh":
		return "你是一个专业翻译。将给定的英文文本翻译成中文。\n" +
			"规则：\n" +
			"1. 输入中的每个英文句子（通常以句号结尾）单独翻译\n" +
			"2. 每个句子的中文译文后面加上\"/\"作为分隔符\n" +
			"3. 最后一句译文后也加\"/\"\n" +
			"4. 只输出中文译文，不要输出其他内容\n\n" +
			"示例：\n" +
			"输入：A girl with long hair. She is running. The sky is blue.\n" +
			"输出：一个长发女孩。/ 她正在奔跑。/ 天空是蓝色的。/"
	case "":
		return "You are a professional translator. Translate the given text.\n" +
			"If the text is in Chinese, translate it to English. If the text is in English, translate it to Chinese.\n" +
			"IMPORTANT: Use \"/\" as sentence separator in your translation to mark sentence boundaries.\n" +
			"Only output the translated text, nothing else."
	default:
		return fmt.Sprintf(
			"You are a professional translator for image captions. Translate the given text from %s to %s. "+
				"Keep every \"/\" sentence separator in place. Only output the translated text, nothing else.",
			langName(sourceLang), langName(targetLang),
		)
	}
}

// NormalizeLang maps language tags such as "zh-CN", "zh_TW" or "EN" onto
// the two-letter codes used throughout the service.
func NormalizeLang(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	if code == "auto" {
		return ""
	}
	return code
}

func langName(code string) string {
	names := map[string]string{
		"en":   "English",
		"zh":   "Chinese",
		"ja":   "Japanese",
		"ko":   "Korean",
		"de":   "German",
		"fr":   "French",
		"es":   "Spanish",
		"ru":   "Russian",
		"":     "auto-detected language",
		"auto": "auto-detected language",
	}
	if name, ok := names[NormalizeLang(code)]; ok {
		return name
	}
	return code
}
