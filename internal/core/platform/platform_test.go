package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stackforge/stackctl/internal/core/resolve"
)

const centos7Release = `NAME="CentOS Linux"
VERSION="7 (Core)"
ID="centos"
ID_LIKE="rhel fedora"
VERSION_ID="7"
PRETTY_NAME="CentOS Linux 7 (Core)"
`

const ubuntuRelease = `NAME="Ubuntu"
VERSION_ID="24.04"
ID=ubuntu
ID_LIKE=debian
`

func TestParseOSRelease(t *testing.T) {
	p := ParseOSRelease(centos7Release)

	assert.Equal(t, "centos", p.ID)
	assert.Equal(t, []string{"rhel", "fedora"}, p.IDLike)
	assert.Equal(t, "7", p.VersionID)
	assert.Equal(t, 7, p.MajorVersion())
}

func TestParseOSRelease_UnquotedAndComments(t *testing.T) {
	p := ParseOSRelease("# comment\nID=ubuntu\nVERSION_ID=24.04\n\nnot a pair\n")

	assert.Equal(t, "ubuntu", p.ID)
	assert.Equal(t, 24, p.MajorVersion())
}

func TestParseOSRelease_Empty(t *testing.T) {
	p := ParseOSRelease("")

	assert.Empty(t, p.ID)
	assert.Equal(t, 0, p.MajorVersion())
}

func TestPreferredEngine(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantEngine resolve.Engine
		wantPinned bool
	}{
		{
			name:       "centos 7 pins docker",
			content:    centos7Release,
			wantEngine: resolve.EngineDocker,
			wantPinned: true,
		},
		{
			name:       "rhel 7 pins docker",
			content:    "ID=\"rhel\"\nVERSION_ID=\"7.9\"\n",
			wantEngine: resolve.EngineDocker,
			wantPinned: true,
		},
		{
			name:       "oracle linux 6 pins docker",
			content:    "ID=\"ol\"\nVERSION_ID=\"6.10\"\n",
			wantEngine: resolve.EngineDocker,
			wantPinned: true,
		},
		{
			name:       "rhel 9 has no pin",
			content:    "ID=\"rhel\"\nVERSION_ID=\"9.3\"\n",
			wantPinned: false,
		},
		{
			name:       "rhel derivative via id_like",
			content:    "ID=\"scientific\"\nID_LIKE=\"rhel centos fedora\"\nVERSION_ID=\"7.2\"\n",
			wantEngine: resolve.EngineDocker,
			wantPinned: true,
		},
		{
			name:       "ubuntu has no pin",
			content:    ubuntuRelease,
			wantPinned: false,
		},
		{
			name:       "unknown version has no pin",
			content:    "ID=\"centos\"\n",
			wantPinned: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, pinned := PreferredEngine(ParseOSRelease(tt.content))
			assert.Equal(t, tt.wantPinned, pinned)
			if tt.wantPinned {
				assert.Equal(t, tt.wantEngine, engine)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	p := Load("/nonexistent/os-release")
	assert.Equal(t, Platform{}, p)
}
