// Package git inspects the local checkout: the branch, head commit and
// commit subject used to describe a build when CI metadata is absent.
package git

// HeadInfo defines the read-only checkout queries resim-launch needs.
type HeadInfo interface {
	// CurrentBranch returns the checked-out branch name.
	CurrentBranch() (string, error)
	// HeadSHA returns the full hash of HEAD.
	HeadSHA() (string, error)
	// HeadSubject returns the first line of the HEAD commit message.
	HeadSubject() (string, error)
}
