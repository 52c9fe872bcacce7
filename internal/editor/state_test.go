package editor

import (
	"errors"
	"testing"

	"image-enhancer/internal/media"
)

func loaded() ViewState {
	s := Reduce(NewState("add a hat"), FileSelected{})
	return Reduce(s, FileLoaded{Generation: s.Generation, Image: media.EncodedImage{Data: "data:image/jpeg;base64,AA==", MediaType: "image/jpeg"}})
}

func edited() ViewState {
	s := Reduce(loaded(), EditStarted{})
	return Reduce(s, EditSucceeded{Generation: s.Generation, Result: media.EditResult{Data: "data:image/png;base64,AQ==", MediaType: "image/png"}})
}

func published() ViewState {
	s := Reduce(edited(), PublishStarted{})
	return Reduce(s, PublishSucceeded{Generation: s.Generation, Artifact: media.PublishedArtifact{URL: s.Result.Data}})
}

// checkInvariants 每次转换后都必须成立的约束
func checkInvariants(t *testing.T, s ViewState) {
	t.Helper()
	if s.Editing && s.EditError != "" {
		t.Errorf("editing and editError both set: %+v", s)
	}
	if s.Published != nil && s.Result == nil {
		t.Errorf("published without result: %+v", s)
	}
	if s.URLCopied && s.Published == nil {
		t.Errorf("urlCopied without published: %+v", s)
	}
	if s.Publishing && s.Published != nil {
		t.Errorf("publishing while published: %+v", s)
	}
	if s.Source == nil && (s.Result != nil || s.Editing || s.EditError != "") {
		t.Errorf("downstream state without source: %+v", s)
	}
}

func TestPhases(t *testing.T) {
	publishing := Reduce(edited(), PublishStarted{})
	failed := Reduce(Reduce(loaded(), EditStarted{}), EditFailed{Generation: loaded().Generation + 1, Err: errors.New("x")})
	cases := []struct {
		name  string
		state ViewState
		want  Phase
	}{
		{"empty", NewState(""), PhaseEmpty},
		{"idle", loaded(), PhaseIdle},
		{"editing", Reduce(loaded(), EditStarted{}), PhaseEditing},
		{"failed", failed, PhaseFailed},
		{"edited", edited(), PhaseEdited},
		{"publishing", publishing, PhasePublishing},
		{"published", published(), PhasePublished},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.state.Phase(); got != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
			checkInvariants(t, tc.state)
		})
	}
}

func TestResetClearsEverythingButInstruction(t *testing.T) {
	s := Reduce(published(), URLCopyConfirmed{})
	s = Reduce(s, Reset{})
	checkInvariants(t, s)
	if s.Phase() != PhaseEmpty || s.URLCopied || s.Published != nil || s.Result != nil {
		t.Fatalf("reset left state behind: %+v", s)
	}
	if s.Instruction != "add a hat" {
		t.Fatalf("instruction should survive reset, got %q", s.Instruction)
	}
}

func TestStaleCompletionsAreIgnored(t *testing.T) {
	s := Reduce(loaded(), EditStarted{})
	stale := s.Generation
	s = Reduce(s, Reset{})

	if got := Reduce(s, EditSucceeded{Generation: stale, Result: media.EditResult{Data: "x"}}); got != s {
		t.Fatalf("stale success applied: %+v", got)
	}
	if got := Reduce(s, EditFailed{Generation: stale, Err: errors.New("x")}); got != s {
		t.Fatalf("stale failure applied: %+v", got)
	}

	p := Reduce(edited(), PublishStarted{})
	gen := p.Generation
	p = Reduce(p, EditStarted{})
	if got := Reduce(p, PublishSucceeded{Generation: gen, Artifact: media.PublishedArtifact{URL: "u"}}); got.Published != nil {
		t.Fatalf("stale publish applied: %+v", got)
	}

	f := Reduce(NewState("p"), FileSelected{})
	old := f.Generation
	f = Reduce(f, FileSelected{})
	if got := Reduce(f, FileLoaded{Generation: old, Image: media.EncodedImage{Data: "x"}}); got.Source != nil {
		t.Fatalf("stale file load applied")
	}
}

func TestEditStartClearsDownstream(t *testing.T) {
	s := Reduce(published(), URLCopyConfirmed{})
	s = Reduce(s, EditStarted{})
	checkInvariants(t, s)
	if !s.Editing || s.Result != nil || s.Published != nil || s.URLCopied || s.Publishing {
		t.Fatalf("edit start did not clear downstream: %+v", s)
	}
	if again := Reduce(s, EditStarted{}); again != s {
		t.Fatalf("second edit start must be a no-op")
	}
}

func TestPublishGuards(t *testing.T) {
	if got := Reduce(loaded(), PublishStarted{}); got.Publishing {
		t.Fatalf("cannot publish without a result")
	}
	p := Reduce(edited(), PublishStarted{})
	if again := Reduce(p, PublishStarted{}); again != p {
		t.Fatalf("publish start must not re-enter")
	}
	if again := Reduce(published(), PublishStarted{}); again.Publishing {
		t.Fatalf("cannot publish twice")
	}
}

func TestCopyTokens(t *testing.T) {
	if got := Reduce(edited(), URLCopyConfirmed{}); got.URLCopied {
		t.Fatalf("copy requires a published URL")
	}
	s := Reduce(published(), URLCopyConfirmed{})
	first := s.CopyToken
	s = Reduce(s, URLCopyConfirmed{})
	if got := Reduce(s, URLCopyExpired{Token: first}); !got.URLCopied {
		t.Fatalf("stale expiry cleared the flag")
	}
	if got := Reduce(s, URLCopyExpired{Token: s.CopyToken}); got.URLCopied {
		t.Fatalf("current expiry must clear the flag")
	}
}

func TestValidationNotice(t *testing.T) {
	s := Reduce(NewState(""), EditRejected{})
	if s.Notice != media.ValidationMessage {
		t.Fatalf("unexpected notice %q", s.Notice)
	}
	s = Reduce(s, InstructionChanged{Text: "sepia"})
	if s.Notice != "" || s.Instruction != "sepia" {
		t.Fatalf("instruction change should clear notice: %+v", s)
	}
}

func TestReadFailureStaysInUploadContext(t *testing.T) {
	s := Reduce(NewState("p"), FileSelected{})
	s = Reduce(s, FileFailed{Generation: s.Generation, Err: media.ErrReadFailure})
	if s.Phase() != PhaseEmpty || s.UploadError != media.ReadFailureMessage || s.EditError != "" {
		t.Fatalf("unexpected state %+v", s)
	}
}
