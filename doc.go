// Package vecbot is an embedded Go client for a vecbot search index.
//
// It runs the same query pipeline as the vecbot server in-process: the
// query text is embedded with an Azure OpenAI deployment and sent to
// Azure Cognitive Search, or to Redis/Valkey with the search module.
//
//	client, _ := vecbot.New(
//	    vecbot.WithAzureSearch("https://demo.search.windows.net", adminKey),
//	    vecbot.WithAzureOpenAI("demo-openai", apiKey, "text-embedding-ada-002"),
//	    vecbot.WithIndex("docs", "titleVector", "contentVector"),
//	)
//	defer client.Close()
//
//	res, _ := client.Search().
//	    Mode(vecbot.ModeFilteredVector).
//	    Text("tools for software development").
//	    Where("category", "Developer Tools").
//	    Top(3).
//	    Do(ctx)
package vecbot
