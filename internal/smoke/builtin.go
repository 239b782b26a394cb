package smoke

import (
	"fmt"

	"github.com/vk/beacongrid/internal/beacon"
	"github.com/vk/beacongrid/internal/wire"
)

// Builtin returns the fixed smoke sequence used when no scenario file is
// given: a handful of messages against the default endpoint, covering two
// devices, a repeat fix, and one frame carrying a non-ASCII payload.
func Builtin(endpoint string) *Scenario {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &Scenario{
		Endpoint: endpoint,
		Timeout:  DefaultTimeout,
		Steps: []Step{
			{
				Name: "first_fix",
				Message: beacon.Message{
					IDNumber:  "2019070111201",
					MessageID: "1",
					Content: mustEncode(wire.Position{
						FixTime:   "07:46:20",
						Latitude:  "N3929.37710",
						Longitude: "E11557.93466",
						Elevation: "01024.50",
						Payload:   "patrol-1",
					}),
					Time:          "2021-12-16 10:30:33",
					DeliveryCount: 1,
					NetworkMode:   1,
				},
				ExpectCode: "ok",
			},
			{
				Name: "second_fix",
				Message: beacon.Message{
					IDNumber:  "2019070111201",
					MessageID: "2",
					Content: mustEncode(wire.Position{
						FixTime:   "07:51:05",
						Latitude:  "N3929.40112",
						Longitude: "E11558.01920",
						Elevation: "01025.10",
						Payload:   "patrol-1",
					}),
					Time:          "2021-12-16 10:35:12",
					DeliveryCount: 1,
					NetworkMode:   1,
				},
				ExpectCode: "ok",
			},
			{
				Name: "second_device",
				Message: beacon.Message{
					IDNumber:  "2019070111202",
					MessageID: "1",
					Content: mustEncode(wire.Position{
						FixTime:   "07:52:40",
						Latitude:  "S1210.00450",
						Longitude: "W07701.55210",
						Elevation: "00012.00",
						Payload:   "patrol-2",
					}),
					Time:          "2021-12-16 10:36:02",
					DeliveryCount: 2,
					NetworkMode:   2,
				},
				ExpectCode: "ok",
			},
			{
				Name: "gbk_payload",
				Message: beacon.Message{
					IDNumber:  "2019070111201",
					MessageID: "3",
					Content: mustEncode(wire.Position{
						FixTime:   "07:58:11",
						Latitude:  "N3929.42001",
						Longitude: "E11558.10033",
						Elevation: "01026.70",
						Payload:   "一切正常",
					}),
					Time:          "2021-12-16 10:41:55",
					DeliveryCount: 1,
					NetworkMode:   1,
				},
				ExpectCode: "ok",
			},
		},
	}
}

// mustEncode is for the fixed scenario's literal positions; a failure here
// is a programmer error.
func mustEncode(p wire.Position) string {
	content, err := p.Encode()
	if err != nil {
		panic(fmt.Errorf("builtin scenario position does not encode: %w", err))
	}
	return content
}
