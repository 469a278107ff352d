package driver

import (
	"reflect"
	"testing"
)

func TestBuildArgs_PromptSubstitution(t *testing.T) {
	args, usesStdin := BuildArgs([]string{"tool", "--prompt", "{prompt}"}, "hello", "", "")
	want := []string{"tool", "--prompt", "hello"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("got %v, want %v", args, want)
	}
	if usesStdin {
		t.Fatalf("expected usesStdin=false when {prompt} is substituted")
	}
}

func TestBuildArgs_NoPromptPlaceholderUsesStdin(t *testing.T) {
	args, usesStdin := BuildArgs([]string{"tool"}, "hello", "", "")
	if !reflect.DeepEqual(args, []string{"tool"}) {
		t.Fatalf("got %v", args)
	}
	if !usesStdin {
		t.Fatalf("expected usesStdin=true when no {prompt} placeholder present")
	}
}

func TestBuildArgs_ResumeDropsContinueFlag(t *testing.T) {
	args, _ := BuildArgs([]string{"tool", "--continue", "--resume", "{resume}", "{prompt}"}, "hi", "abc", "")
	want := []string{"tool", "--resume", "abc", "hi"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("got %v, want %v", args, want)
	}
}

func TestBuildArgs_NoResumeDropsResumeFlagPair(t *testing.T) {
	args, _ := BuildArgs([]string{"tool", "--resume", "{resume}", "{prompt}"}, "hi", "", "")
	want := []string{"tool", "hi"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("got %v, want %v", args, want)
	}
}

func TestBuildArgs_ImagePlaceholderStrippedWhenAbsent(t *testing.T) {
	args, _ := BuildArgs([]string{"tool", "--image={image}", "{prompt}"}, "hi", "", "")
	want := []string{"tool", "--image=", "hi"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("got %v, want %v", args, want)
	}
}

func TestBuildArgs_ImageSubstituted(t *testing.T) {
	args, _ := BuildArgs([]string{"tool", "--image", "{image}", "{prompt}"}, "hi", "", "/tmp/a.png")
	want := []string{"tool", "--image", "/tmp/a.png", "hi"}
	if !reflect.DeepEqual(args, want) {
		t.Fatalf("got %v, want %v", args, want)
	}
}
