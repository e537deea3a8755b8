package orchestrator

import (
	"math/rand"
	"time"
)

// fixedReplyDelay paces the fixed responses; they deliberately ignore the
// arousal-based typing model.
const fixedReplyDelay = 800 * time.Millisecond

// safetyReply is the crisis response. It is never modulated by personality,
// fatigue, or mood, and it must stay reachable no matter what state the
// engines are in.
const safetyReply = `听到你说这些，我真的很担心你。你对我来说非常重要。
如果你现在很难受，请一定找一个信任的人陪着你；也可以拨打心理援助热线 400-161-9995，那里有专业的人随时接听。
我就在这里，哪怕不说话也可以，我陪着你。`

// fallbackReply is the only generation-failure text a user ever sees.
const fallbackReply = "抱歉，我刚才走神了……你刚说的我想再听一遍。"

// collapseReplies are the meltdown responses. When the state says the
// companion is overwhelmed, the backend is not consulted at all.
var collapseReplies = []string{
	"我现在脑子里很乱，说不出什么像样的话……让我缓一缓好吗。",
	"……对不起，我需要安静一会儿。",
	"先不聊了，我有点撑不住，等我平静下来再找你。",
}

func defaultRand() float64 {
	return rand.Float64()
}
