package mock

import (
	"time"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/domain/shop"
)

// Fixture credentials accepted by the mock login.
const (
	Username = "test_user"
	Password = "password123"
)

// TokenPrefix prefixes the deterministic mock-mode token.
const TokenPrefix = "mock_token_"

var fixtureEpoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func fixtureProducts() []shop.Product {
	return []shop.Product{
		{
			ID:            "p1",
			Name:          "普洱熟茶饼",
			Description:   "勐海古树原料，陈香醇厚的357克熟茶饼。",
			Price:         128,
			OriginalPrice: 168,
			Images:        []string{"/static/products/puer-1.jpg", "/static/products/puer-2.jpg"},
			CategoryID:    "c1",
			Tags:          []string{"tea", "puer", "普洱"},
			Origin:        "西双版纳勐海",
			Stock:         120,
			Sales:         860,
			Rating:        4.9,
			Featured:      true,
			Specs: []shop.Spec{
				{Name: "规格", Options: []string{"357g", "200g"}},
				{Name: "年份", Options: []string{"2019", "2021"}},
			},
		},
		{
			ID:          "p2",
			Name:        "玫瑰鲜花饼",
			Description: "现烤酥皮包裹重瓣食用玫瑰馅料。",
			Price:       39.9,
			Images:      []string{"/static/products/flower-cake.jpg"},
			CategoryID:  "c2",
			Tags:        []string{"pastry", "flower", "鲜花饼"},
			Origin:      "昆明",
			Stock:       300,
			Sales:       2410,
			Rating:      4.8,
			Featured:    true,
			Specs: []shop.Spec{
				{Name: "口味", Options: []string{"玫瑰", "茉莉"}},
			},
		},
		{
			ID:          "p3",
			Name:        "野生松茸",
			Description: "香格里拉高山松茸，冷链直发。",
			Price:       298,
			Images:      []string{"/static/products/matsutake.jpg"},
			CategoryID:  "c3",
			Tags:        []string{"mushroom", "matsutake", "菌"},
			Origin:      "迪庆香格里拉",
			Stock:       40,
			Sales:       190,
			Rating:      4.7,
		},
		{
			ID:            "p4",
			Name:          "宣威火腿",
			Description:   "传统腌制两年以上的整腿，咸香回甘。",
			Price:         268,
			OriginalPrice: 320,
			Images:        []string{"/static/products/ham.jpg"},
			CategoryID:    "c2",
			Tags:          []string{"ham", "火腿"},
			Origin:        "曲靖宣威",
			Stock:         65,
			Sales:         530,
			Rating:        4.8,
			Featured:      true,
		},
		{
			ID:          "p5",
			Name:        "保山小粒咖啡",
			Description: "中度烘焙咖啡豆，带坚果与黑巧风味。",
			Price:       88,
			Images:      []string{"/static/products/coffee.jpg"},
			CategoryID:  "c4",
			Tags:        []string{"coffee", "咖啡"},
			Origin:      "保山",
			Stock:       200,
			Sales:       740,
			Rating:      4.6,
			Specs: []shop.Spec{
				{Name: "研磨", Options: []string{"咖啡豆", "中细粉"}},
			},
		},
	}
}

func fixtureCategories() []shop.Category {
	return []shop.Category{
		{ID: "c1", Name: "茶叶", Icon: "/static/icons/tea.png", Description: "普洱、滇红与白茶"},
		{ID: "c2", Name: "特色美食", Icon: "/static/icons/food.png", Description: "鲜花饼、火腿与糕点"},
		{ID: "c3", Name: "山珍菌菇", Icon: "/static/icons/mushroom.png", Description: "应季野生菌"},
		{ID: "c4", Name: "咖啡饮品", Icon: "/static/icons/coffee.png", Description: "云南小粒咖啡"},
	}
}

func fixtureProfile() shop.UserProfile {
	return shop.UserProfile{
		ID:          "u1",
		Username:    Username,
		Nickname:    "彩云之南",
		Avatar:      "/static/avatar/default.png",
		Phone:       "13800000000",
		Email:       "test_user@example.com",
		MemberLevel: "gold",
		Points:      1280,
		CreatedAt:   fixtureEpoch,
	}
}

func fixtureAddresses() []shop.Address {
	return []shop.Address{
		{
			ID:        "a1",
			Name:      "张三",
			Phone:     "13800000000",
			Province:  "云南省",
			City:      "昆明市",
			District:  "五华区",
			Detail:    "翠湖南路1号",
			IsDefault: true,
		},
		{
			ID:       "a2",
			Name:     "李四",
			Phone:    "13900000000",
			Province: "云南省",
			City:     "大理白族自治州",
			District: "大理市",
			Detail:   "古城人民路88号",
		},
	}
}

func fixtureCart() []shop.CartItem {
	return []shop.CartItem{
		{
			ID:            "ci1",
			ProductID:     "p1",
			Name:          "普洱熟茶饼",
			Image:         "/static/products/puer-1.jpg",
			Quantity:      1,
			SelectedSpecs: map[string]string{"规格": "357g"},
			Price:         128,
			Selected:      true,
			AddedAt:       fixtureEpoch,
		},
		{
			ID:        "ci2",
			ProductID: "p3",
			Name:      "野生松茸",
			Image:     "/static/products/matsutake.jpg",
			Quantity:  2,
			Price:     298,
			Selected:  true,
			AddedAt:   fixtureEpoch.Add(time.Hour),
		},
	}
}

func fixtureArticles() []shop.Article {
	return []shop.Article{
		{
			ID:          "art1",
			Title:       "一片普洱的时间旅行",
			Summary:     "从勐海茶山到茶饼，看普洱如何在岁月里转化。",
			Content:     "普洱茶讲究越陈越香……",
			Cover:       "/static/content/puer.jpg",
			Author:      "云味编辑部",
			Tags:        []string{"tea"},
			Featured:    true,
			Views:       3200,
			PublishedAt: fixtureEpoch,
		},
		{
			ID:          "art2",
			Title:       "雨季的菌子江湖",
			Summary:     "七月的昆明，木水花市场里的野生菌图鉴。",
			Content:     "每年雨季一到……",
			Cover:       "/static/content/mushroom.jpg",
			Author:      "山野",
			Tags:        []string{"mushroom"},
			Views:       1800,
			PublishedAt: fixtureEpoch.Add(48 * time.Hour),
		},
		{
			ID:          "art3",
			Title:       "鲜花入馔",
			Summary:     "玫瑰、茉莉与棠梨花，云南人把花吃成了日常。",
			Content:     "在云南，花是一种食材……",
			Cover:       "/static/content/flowers.jpg",
			Author:      "云味编辑部",
			Tags:        []string{"flower"},
			Views:       950,
			PublishedAt: fixtureEpoch.Add(96 * time.Hour),
		},
	}
}

func fixtureHeritage() []shop.HeritageItem {
	return []shop.HeritageItem{
		{
			ID:          "h1",
			Name:        "普洱茶制作技艺",
			Region:      "普洱市",
			Category:    "传统技艺",
			Description: "国家级非物质文化遗产，包括杀青、揉捻、晒青与压制。",
			Story:       "茶马古道上的马帮把普洱带向四方。",
			Images:      []string{"/static/heritage/puer-craft.jpg"},
			ProductIDs:  []string{"p1"},
		},
		{
			ID:          "h2",
			Name:        "宣威火腿腌制技艺",
			Region:      "宣威市",
			Category:    "传统技艺",
			Description: "以乌金猪后腿为原料，经腌制、堆码、上挂与发酵而成。",
			Images:      []string{"/static/heritage/ham-craft.jpg"},
			ProductIDs:  []string{"p4"},
		},
	}
}
