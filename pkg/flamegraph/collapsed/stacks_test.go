package collapsed_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jvmprof/jvmprof/pkg/flamegraph/collapsed"
)

func strptr(s string) *string {
	return &s
}

func TestCollapsedParsing(t *testing.T) {
	for i, test := range []struct {
		raw         string
		expected    *string
		profile     *collapsed.Profile
		err         bool
		noroundtrip bool
	}{{
		raw: `com.example.Foo.main(java.lang.String[]);com.example.Foo.work() 42`,
		profile: &collapsed.Profile{
			Samples: []collapsed.Sample{{
				Stack: []string{"com.example.Foo.main(java.lang.String[])", "com.example.Foo.work()"},
				Value: 42,
			}},
		},
	}, {
		raw: `java.lang.Thread.run() 1


GeneratedClass$$Lambda$12..apply() 1099511627776`,
		profile: &collapsed.Profile{
			Samples: []collapsed.Sample{{
				Stack: []string{"java.lang.Thread.run()"},
				Value: 1,
			}, {
				Stack: []string{"GeneratedClass$$Lambda$12..apply()"},
				Value: 1099511627776,
			}},
		},
		noroundtrip: true,
	}, {
		raw: `stub;frame 0x10`,
		profile: &collapsed.Profile{
			Samples: []collapsed.Sample{{
				Stack: []string{"stub", "frame"},
				Value: 16,
			}},
		},
		expected: strptr(`stub;frame 16`),
	}, {
		raw: `abc`,
		err: true,
	}, {
		raw: `void Foo.bar(int x)`,
		err: true,
	}} {
		t.Run(fmt.Sprintf("collapsed/%d", i), func(t *testing.T) {
			profile, err := collapsed.Unmarshal([]byte(test.raw))
			if test.err {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, test.profile, profile)

				raw, err := collapsed.Marshal(profile)
				require.NoError(t, err)
				if !test.noroundtrip {
					if test.expected != nil {
						require.Equal(t, *test.expected, strings.TrimSpace(string(raw)))
					} else {
						require.Equal(t, test.raw, strings.TrimSpace(string(raw)))
					}
				}
			}
		})
	}
}
