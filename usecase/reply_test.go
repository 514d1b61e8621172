package usecase

import "testing"

func TestParseReply(t *testing.T) {
	tests := []struct {
		text string
		want ReplyVerdict
	}{
		{"confirm", ReplyAffirmative},
		{"Yes", ReplyAffirmative},
		{"OK", ReplyAffirmative},
		{"yeah, go ahead", ReplyAffirmative},
		{"sure thing", ReplyAffirmative},
		{"确认", ReplyAffirmative},
		{"好的", ReplyAffirmative},
		{"cancel", ReplyNegative},
		{"No", ReplyNegative},
		{"please stop", ReplyNegative},
		{"refuse", ReplyNegative},
		{"取消", ReplyNegative},
		{"不要", ReplyNegative},
		// Both sets match: unparseable, never a guess
		{"yes no", ReplyUnparseable},
		{"confirm... actually cancel", ReplyUnparseable},
		// Neither set matches
		{"what was the amount again", ReplyUnparseable},
		{"", ReplyUnparseable},
		{"   ", ReplyUnparseable},
	}

	for _, tt := range tests {
		if got := ParseReply(tt.text); got != tt.want {
			t.Errorf("ParseReply(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
