package usecase

import "testing"

func TestTranslateCQCodes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "face code",
			input: "你好[CQ:face,id=5]",
			want:  "你好[表情:5]",
		},
		{
			name:  "face code with raw parameter",
			input: "[CQ:face,id=14,raw=something]",
			want:  "[表情:14]",
		},
		{
			name:  "image code",
			input: "看这个[CQ:image,file=abc.jpg]",
			want:  "看这个[图片:abc.jpg]",
		},
		{
			name:  "at mention",
			input: "[CQ:at,qq=12345] 在吗",
			want:  "[@:12345] 在吗",
		},
		{
			name:  "record code",
			input: "[CQ:record,file=voice.amr]",
			want:  "[语音:voice.amr]",
		},
		{
			name:  "video code",
			input: "[CQ:video,file=v.mp4]",
			want:  "[视频:v.mp4]",
		},
		{
			name:  "json card",
			input: "[CQ:json,data=whatever]",
			want:  "[JSON卡片]",
		},
		{
			name:  "bracket entities unescaped",
			input: "文本 &#91;内嵌&#93; 结束",
			want:  "文本 [内嵌] 结束",
		},
		{
			name:  "object artifact removed",
			input: "前&#91;object Object&#93;后",
			want:  "前后",
		},
		{
			name:  "plain text untouched",
			input: "普通消息，没有标记",
			want:  "普通消息，没有标记",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "multiple codes in one message",
			input: "[CQ:at,qq=1][CQ:face,id=2]hello",
			want:  "[@:1][表情:2]hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateCQCodes(tt.input)
			if got != tt.want {
				t.Errorf("TranslateCQCodes(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTranslateCQCodesDeterministic(t *testing.T) {
	input := "[CQ:face,id=5] &#91;x&#93; [CQ:at,qq=9]"
	if TranslateCQCodes(input) != TranslateCQCodes(input) {
		t.Error("translation is not deterministic for identical input")
	}
}
