package usecase

import (
	"regexp"
	"strings"
)

// CQ codes are the gateway's inline markup for non-text content, e.g.
// [CQ:face,id=5] or [CQ:at,qq=123]. They are rewritten into short bracketed
// placeholders so the model and the digest see readable text.
var (
	cqFace   = regexp.MustCompile(`\[CQ:face,id=(\d+)(?:,raw=[^\]]*)?\]`)
	cqImage  = regexp.MustCompile(`\[CQ:image,file=([^\]]*)\]`)
	cqAt     = regexp.MustCompile(`\[CQ:at,qq=(\d+)\]`)
	cqRecord = regexp.MustCompile(`\[CQ:record,file=([^\]]*)\]`)
	cqVideo  = regexp.MustCompile(`\[CQ:video,file=([^\]]*)\]`)
	cqJSON   = regexp.MustCompile(`\[CQ:json,data=([^\]]*)\]`)
)

// cqEntities unescapes the bracket entities the gateway emits inside raw
// parameters, which otherwise corrupt the text. Order matters: the
// object-Object artifact must go before the brackets are restored.
var cqEntities = strings.NewReplacer(
	"&#91;object Object&#93;", "",
	"&#93;", "]",
	"&#91;", "[",
)

// TranslateCQCodes rewrites CQ markup tokens into human-readable
// placeholders and unescapes the gateway's bracket entities
func TranslateCQCodes(text string) string {
	if text == "" {
		return text
	}
	text = cqFace.ReplaceAllString(text, "[表情:$1]")
	text = cqImage.ReplaceAllString(text, "[图片:$1]")
	text = cqAt.ReplaceAllString(text, "[@:$1]")
	text = cqRecord.ReplaceAllString(text, "[语音:$1]")
	text = cqVideo.ReplaceAllString(text, "[视频:$1]")
	text = cqJSON.ReplaceAllString(text, "[JSON卡片]")
	return cqEntities.Replace(text)
}
