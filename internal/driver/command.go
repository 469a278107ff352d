package driver

import "strings"

// BuildArgs expands a tool's argv template into a concrete command line for
// one prompt, ported from original_source/utils.py's build_command:
//   - "{prompt}" is substituted with prompt; its presence means the prompt
//     travels on argv and the caller must not also write it to stdin.
//   - "{resume}" is substituted with resume when present; when resume is
//     empty, any token containing "{resume}" is dropped, and a "--resume"
//     flag is dropped together with the token after it (so
//     "--resume {resume}" disappears as a pair). A bare "--continue" flag
//     is dropped when resume is non-empty and kept when it is empty.
//   - "{image}" is substituted with image when present, or stripped out of
//     its containing token (not dropped whole) when absent and the token
//     is not a bare placeholder.
func BuildArgs(template []string, prompt, resume, image string) (args []string, usesStdin bool) {
	replaced := false
	skipNext := false
	skipContinue := resume != ""

	for i := 0; i < len(template); i++ {
		part := template[i]

		if skipNext {
			skipNext = false
			continue
		}
		if skipContinue && part == "--continue" {
			continue
		}
		if strings.Contains(part, "{resume}") {
			if resume == "" {
				continue
			}
			args = append(args, strings.ReplaceAll(part, "{resume}", resume))
			continue
		}
		if strings.Contains(part, "{image}") {
			if image == "" {
				if part == "{image}" {
					continue
				}
				args = append(args, strings.ReplaceAll(part, "{image}", ""))
				continue
			}
			args = append(args, strings.ReplaceAll(part, "{image}", image))
			continue
		}
		if part == "--resume" && resume == "" {
			skipNext = true
			continue
		}
		if strings.Contains(part, "{prompt}") {
			args = append(args, strings.ReplaceAll(part, "{prompt}", prompt))
			replaced = true
			continue
		}
		args = append(args, part)
	}

	return args, !replaced
}
