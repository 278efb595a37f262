package intent

import (
	"regexp"
	"strconv"
	"strings"
)

// Keywords are hints recovered from a chat message without the model.
type Keywords struct {
	Devices  []string `json:"devices"`
	Settings []string `json:"settings"`
	Actions  []string `json:"actions"`
	Values   []int    `json:"values,omitempty"`
}

type keywordSet struct {
	id    string
	words []string
}

var (
	deviceKeywords = []keywordSet{
		{"about-xeo", []string{"about", "xeo", "关于", "信息", "简介"}},
		{"apple-tv", []string{"apple", "tv", "苹果", "电视", "视频", "电影", "播放器"}},
		{"playstation", []string{"ps5", "playstation", "ps", "游戏", "索尼", "控制台"}},
		{"nintendo", []string{"nintendo", "switch", "任天堂", "游戏", "马里奥", "塞尔达"}},
	}
	settingKeywords = []keywordSet{
		{"volume", []string{"volume", "loud", "quiet", "mute", "音量", "声音", "静音"}},
		{"ipd", []string{"ipd", "pupil", "瞳距", "瞳孔", "眼睛"}},
		{"magic", []string{"magic", "pulse", "魔法", "脉冲", "震动"}},
		{"seat", []string{"seat", "chair", "座椅", "座位", "椅子"}},
		{"ventilation", []string{"ventilation", "fan", "airflow", "通风", "风扇", "风量"}},
	}
	actionKeywords = []keywordSet{
		{"connect", []string{"connect", "start", "open", "enable", "连接", "启动", "打开", "启用"}},
		{"disconnect", []string{"disconnect", "stop", "close", "disable", "断开", "关闭", "停止", "禁用"}},
	}

	valuePattern = regexp.MustCompile(`\b(\d+)(?:\s*(?:%|mm|percent|millimeters?|百分比|毫米))?`)
	wordPattern  = regexp.MustCompile(`[a-z0-9]+`)
)

// AnalyzeKeywords scans msg for device, setting and action keywords and
// for numeric values. ASCII keywords match whole words, others match as
// substrings.
func AnalyzeKeywords(msg string) Keywords {
	lower := strings.ToLower(msg)
	words := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(lower, -1) {
		words[w] = true
	}

	kw := Keywords{
		Devices:  match(deviceKeywords, lower, words),
		Settings: match(settingKeywords, lower, words),
		Actions:  match(actionKeywords, lower, words),
	}
	for _, m := range valuePattern.FindAllStringSubmatch(msg, -1) {
		if v, err := strconv.Atoi(m[1]); err == nil {
			kw.Values = append(kw.Values, v)
		}
	}
	return kw
}

func match(sets []keywordSet, lower string, words map[string]bool) []string {
	out := []string{}
	for _, set := range sets {
		for _, w := range set.words {
			if hit(w, lower, words) {
				out = append(out, set.id)
				break
			}
		}
	}
	return out
}

func hit(keyword, lower string, words map[string]bool) bool {
	if isASCII(keyword) {
		return words[keyword]
	}
	return strings.Contains(lower, keyword)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
